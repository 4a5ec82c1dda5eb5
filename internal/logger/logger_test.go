package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Feature: marketplace, Property 30: Rotated log file entries are structured
func TestProperty_FileLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry written to the log file is JSON with level and message", prop.ForAll(
		func(message string, orderID string) bool {
			path := filepath.Join(t.TempDir(), "app.log")

			log, err := NewWithFile("production", FileOptions{Enable: true, Filename: path})
			if err != nil {
				return false
			}
			log.Info(message, zap.String("order_id", orderID))
			_ = log.Sync()

			f, err := os.Open(path)
			if err != nil {
				return false
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			if !scanner.Scan() {
				return false
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
				return false
			}

			return entry["msg"] == message && entry["level"] == "info" && entry["order_id"] == orderID
		},
		gen.AlphaString(),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewBuildsForEveryEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development", "staging"} {
		log, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
		if log == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}
}

func TestNewWithFileIgnoresEmptyFilename(t *testing.T) {
	log, err := NewWithFile("production", FileOptions{Enable: true})
	if err != nil {
		t.Fatalf("NewWithFile failed: %v", err)
	}
	if log == nil {
		t.Fatal("expected a stdout logger")
	}
}

func TestNewWithDefaults(t *testing.T) {
	t.Setenv("SERVER_ENV", "")
	if NewWithDefaults() == nil {
		t.Fatal("Logger should not be nil")
	}
}
