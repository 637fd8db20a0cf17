package apperr

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// correlationHeaders lists the inbound headers checked, in priority order.
var correlationHeaders = []string{"correlation-id", "x-correlation-id", "x-request-id"}

const maxCorrelationIDLen = 128

// CorrelationIDFromRequest resolves the request's correlation id: the first
// non-empty inbound header value (truncated to 128 chars), or a freshly
// generated one if none was supplied.
func CorrelationIDFromRequest(r *http.Request) string {
	for _, h := range correlationHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			if len(v) > maxCorrelationIDLen {
				v = v[:maxCorrelationIDLen]
			}
			return v
		}
	}
	return GenerateCorrelationID()
}

// GenerateCorrelationID produces a correlation id of the form
// "req-<base36-timestamp>-<9-base36-random>".
func GenerateCorrelationID() string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)

	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.Grow(9)
	for i := 0; i < 9; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}

	return "req-" + ts + "-" + b.String()
}
