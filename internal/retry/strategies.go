package retry

import "github.com/wisbric/corpreg/internal/typederror"

// GusStrategy retries server-side and transient failures but never a
// definitive NotFound, Unauthorized, or MalformedResponse.
type GusStrategy struct{}

func (GusStrategy) CanRetry(err *typederror.Error) bool {
	switch err.Kind {
	case typederror.KindServerError, typederror.KindSessionExpired, typederror.KindTimeout, typederror.KindNetwork:
		return true
	default:
		return false
	}
}

// KrsStrategy retries transient failures only. NotFound is handled as a
// P→S registry fallback by the orchestrator, never as a retry.
type KrsStrategy struct{}

func (KrsStrategy) CanRetry(err *typederror.Error) bool {
	switch err.Kind {
	case typederror.KindServerError, typederror.KindTimeout, typederror.KindNetwork:
		return true
	default:
		return false
	}
}

// CeidgStrategy retries transient failures but never RateLimited, NotFound,
// or Unauthorized — those are handled by the CEIDG→GUS fallback instead.
type CeidgStrategy struct{}

func (CeidgStrategy) CanRetry(err *typederror.Error) bool {
	switch err.Kind {
	case typederror.KindServerError, typederror.KindTimeout, typederror.KindNetwork:
		return true
	default:
		return false
	}
}
