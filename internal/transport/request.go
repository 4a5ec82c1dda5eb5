package transport

import (
	"net/http"
	"strconv"

	"marketplace/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Guards are the route middlewares built by the server.
type Guards struct {
	// Public wraps anonymous routes.
	Public func(http.Handler) http.Handler
	// Auth requires a valid access token.
	Auth     func(http.Handler) http.Handler
	Client   func(http.Handler) http.Handler
	Business func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func (g Guards) withDefaults() Guards {
	if g.Public == nil {
		g.Public = passthrough
	}
	if g.Auth == nil {
		g.Auth = passthrough
	}
	if g.Client == nil {
		g.Client = passthrough
	}
	if g.Business == nil {
		g.Business = passthrough
	}
	return g
}

// decodeRequest reads and validates the JSON body, answering 400 itself on
// failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}

// currentUser returns the authenticated user id, answering 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a uuid URL parameter, answering 400 when malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a positive integer query parameter; anything else yields 0
// and lets the service apply its default.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
