package webdav

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drivedav/drivedav/internal/logging"
)

const realm = `Basic realm="drivedav"`

// Credentials is the single account allowed to use the share.
type Credentials struct {
	User         string
	Password     string
	PasswordHash string // bcrypt; used instead of Password when set
}

// Valid reports whether user and password match.
func (c Credentials) Valid(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1

	var passOK bool
	if c.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return userOK && passOK
}

// BasicAuthMiddleware returns middleware that requires HTTP Basic Auth.
func BasicAuthMiddleware(creds Credentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", realm)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if !creds.Valid(username, password) {
				logging.Warn("webdav auth failed",
					zap.String("username", username),
					zap.String("remote_addr", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", realm)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
