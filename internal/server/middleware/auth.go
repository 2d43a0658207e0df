package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

// AuthConfig is shared with the running server so credentials can be
// rotated without a restart.
type AuthConfig struct {
	mu       sync.RWMutex
	enabled  bool
	user     string
	password string
}

func NewAuthConfig(enabled bool, user, password string) *AuthConfig {
	return &AuthConfig{enabled: enabled, user: user, password: password}
}

func (c *AuthConfig) Update(enabled bool, user, password string) {
	c.mu.Lock()
	c.enabled = enabled
	c.user = user
	c.password = password
	c.mu.Unlock()
}

func (c *AuthConfig) get() (bool, string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled, c.user, c.password
}

// Auth requires HTTP basic credentials on every path except the
// excluded ones. A trailing "*" excludes a prefix.
func Auth(cfg *AuthConfig, excludePaths ...string) Middleware {
	exact := make(map[string]bool)
	var prefixes []string
	for _, p := range excludePaths {
		if strings.HasSuffix(p, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		exact[p] = true
	}

	excluded := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, wantUser, wantPass := cfg.get()
			if !enabled || excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
			if !userOK || !passOK {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="codvfs"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
