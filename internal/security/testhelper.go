package security

// testSecret is a 64-byte secret for unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdef0123456789abcdef0123456789abcdef0123"

// NewTestTokenIssuer returns a TokenIssuer using a fixed test secret.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	p, err := NewTokenIssuer([]byte(testSecret), "test-issuer")
	if err != nil {
		panic(err)
	}
	return p
}
