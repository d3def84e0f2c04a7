package security

import "errors"

// Token validation failures. Callers use ReasonFor to map them to a diagnostic code and must
// otherwise treat every one of them as "unauthenticated".
var (
	ErrTokenExpired              = errors.New("token expired")
	ErrTokenMalformed            = errors.New("token malformed")
	ErrTokenUnsupportedAlgorithm = errors.New("token signing algorithm not supported")
	ErrInvalidSignature          = errors.New("token signature invalid")
	ErrTokenUnparseable          = errors.New("token could not be parsed")
)

// ErrSecretTooShort is returned when the signing secret is shorter than MinSecretBytes.
var ErrSecretTooShort = errors.New("signing secret must be at least 64 bytes")

// Reason is a diagnostic code for an authentication failure.
type Reason string

const (
	ReasonExpired          Reason = "expired"
	ReasonMalformed        Reason = "malformed"
	ReasonUnsupported      Reason = "unsupported"
	ReasonInvalidSignature Reason = "invalid-signature"
	ReasonRevoked          Reason = "revoked"
	ReasonInternal         Reason = "internal"
)

// ReasonFor maps a validation error to its diagnostic code. Unknown errors map to ReasonInternal.
func ReasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenUnparseable):
		return ReasonMalformed
	case errors.Is(err, ErrTokenUnsupportedAlgorithm):
		return ReasonUnsupported
	case errors.Is(err, ErrInvalidSignature):
		return ReasonInvalidSignature
	default:
		return ReasonInternal
	}
}
