package web

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"reccal/internal/config"
	appLog "reccal/internal/log"
)

type basicAuth struct {
	username string
	password string
	hash     []byte
}

// newBasicAuth returns nil when auth is not fully configured.
func newBasicAuth(cfg *config.BasicAuthConfig) *basicAuth {
	if cfg == nil || cfg.Username == "" {
		return nil
	}
	a := &basicAuth{username: cfg.Username, password: cfg.Password}
	if cfg.PasswordHash != "" {
		a.hash = []byte(cfg.PasswordHash)
	} else if cfg.Password == "" {
		return nil
	}
	return a
}

func (a *basicAuth) check(user, pass string) bool {
	userOK := secureCompare(user, a.username)
	var passOK bool
	if a.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(a.hash, []byte(pass)) == nil
	} else {
		passOK = secureCompare(pass, a.password)
	}
	return userOK && passOK
}

// middleware guards everything except /health.
func (a *basicAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !a.check(u, p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="reccal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// statusRecorder captures the status code and size for the access log. It
// passes Hijack through so websocket upgrades still work.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Hijacker")
	}
	return h.Hijack()
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.size,
			"duration", time.Since(start),
		)
	})
}
