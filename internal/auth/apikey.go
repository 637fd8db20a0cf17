// Package auth provides bearer API-key authentication and incoming-request
// rate limiting for the authenticated API surface.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wisbric/corpreg/internal/apperr"
)

// KeyChecker validates a raw bearer token against the set of configured API
// keys. Keys are stored hashed (bcrypt over a SHA-256 pre-hash, the same
// combination the corpus uses to keep bcrypt's 72-byte input limit from
// truncating long tokens) so the configured secrets never sit in memory as
// plain comparable strings.
type KeyChecker struct {
	hashes [][]byte
}

// NewKeyChecker pre-hashes the configured raw API keys.
func NewKeyChecker(rawKeys []string) (*KeyChecker, error) {
	kc := &KeyChecker{hashes: make([][]byte, 0, len(rawKeys))}
	for _, k := range rawKeys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		h, err := bcrypt.GenerateFromPassword(preHash(k), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		kc.hashes = append(kc.hashes, h)
	}
	return kc, nil
}

// Enabled reports whether any API keys are configured.
func (kc *KeyChecker) Enabled() bool {
	return kc != nil && len(kc.hashes) > 0
}

// Check returns true if raw matches one of the configured keys.
func (kc *KeyChecker) Check(raw string) bool {
	pre := preHash(raw)
	for _, h := range kc.hashes {
		if bcrypt.CompareHashAndPassword(h, pre) == nil {
			return true
		}
	}
	return false
}

func preHash(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// ConstantTimeEqual is a small helper retained for call sites that compare
// two already-known-length secrets without the cost of bcrypt (e.g. webhook
// signatures elsewhere in the stack); unused here but kept colocated with
// the rest of the auth primitives.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Middleware enforces bearer API-key authentication on every request it
// wraps. If no keys are configured, the middleware is a no-op (useful for
// local development) — production config validation refuses to start
// without at least one key.
func Middleware(checker *KeyChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperr.WriteResponse(w, apperr.MissingAPIKey(), apperr.CorrelationIDFromRequest(r))
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				apperr.WriteResponse(w, apperr.InvalidAPIKey(), apperr.CorrelationIDFromRequest(r))
				return
			}

			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
			if raw == "" {
				apperr.WriteResponse(w, apperr.MissingAPIKey(), apperr.CorrelationIDFromRequest(r))
				return
			}

			if !checker.Check(raw) {
				apperr.WriteResponse(w, apperr.InvalidAPIKey(), apperr.CorrelationIDFromRequest(r))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
