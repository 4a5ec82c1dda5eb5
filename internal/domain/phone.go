package domain

import "unicode"

// MinPhoneDigits is the fewest digit characters a delivery phone may contain.
const MinPhoneDigits = 8

// PhoneDigits counts the ASCII digits in s, ignoring spaces, '+', dashes and the like.
func PhoneDigits(s string) int {
	n := 0
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// ValidPhone reports whether s carries at least MinPhoneDigits digits.
func ValidPhone(s string) bool {
	return PhoneDigits(s) >= MinPhoneDigits
}
