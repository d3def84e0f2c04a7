package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the minimum HS512 secret length (512 bits).
const MinSecretBytes = 64

// DefaultSecondFactorTTL is the lifetime of a second-factor-pending token.
const DefaultSecondFactorTTL = 5 * time.Minute

// signingMethod is the only algorithm accepted by Validate.
var signingMethod = jwt.SigningMethodHS512

// errAlgorithmMismatch is returned from the key func so the parser stops before signature checks.
var errAlgorithmMismatch = errors.New("algorithm mismatch")

// TokenType distinguishes what a token may be used for.
type TokenType string

const (
	TokenTypeAccess       TokenType = "access"
	TokenTypeRefresh      TokenType = "refresh"
	TokenTypeSecondFactor TokenType = "second_factor"

	// TokenTypeEmailVerification proves control of an email address; never accepted as a bearer credential.
	TokenTypeEmailVerification TokenType = "email_verification"
)

// DefaultEmailVerificationTTL is the lifetime of an email verification token.
const DefaultEmailVerificationTTL = 24 * time.Hour

// Claims are the caller-supplied claims embedded alongside the registered ones.
type Claims struct {
	Type      TokenType `json:"typ"`
	Temporary bool      `json:"tmp,omitempty"`
	// OrgID is the organization active at login, 0 when none.
	OrgID       int64  `json:"org_id,omitempty"`
	ChallengeID string `json:"chl,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Claims
}

// IssuedToken is a signed token with the identifiers callers persist.
type IssuedToken struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Validated is the result of a successful Validate.
type Validated struct {
	IdentityID string
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Claims     Claims
}

// TokenIssuer signs and validates HS512 bearer tokens. It holds no mutable state beyond the
// pinned secret. Validate does not consult revocation state; callers cross-check the returned
// TokenID with the session registry.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. A secret shorter than MinSecretBytes is a fatal
// configuration error and returns ErrSecretTooShort.
func NewTokenIssuer(secret []byte, issuer string) (*TokenIssuer, error) {
	if len(secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &TokenIssuer{secret: s, issuer: issuer, now: time.Now}, nil
}

// WithClock returns a copy of p that reads time from now. Used by tests.
func (p *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *p
	cp.now = now
	return &cp
}

// Issue signs a token for identityID that expires after ttl, with a fresh token id.
func (p *TokenIssuer) Issue(identityID string, claims Claims, ttl time.Duration) (IssuedToken, error) {
	tokenID, err := NewTokenID()
	if err != nil {
		return IssuedToken{}, err
	}
	return p.issueWithID(identityID, tokenID, claims, ttl)
}

// IssueSecondFactor issues a temporary token proving the password step for challengeID.
func (p *TokenIssuer) IssueSecondFactor(identityID, challengeID string, ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = DefaultSecondFactorTTL
	}
	return p.Issue(identityID, Claims{
		Type:        TokenTypeSecondFactor,
		Temporary:   true,
		ChallengeID: challengeID,
	}, ttl)
}

// IssueEmailVerification issues a token confirming identityID owns its email address.
func (p *TokenIssuer) IssueEmailVerification(identityID string, ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = DefaultEmailVerificationTTL
	}
	return p.Issue(identityID, Claims{Type: TokenTypeEmailVerification, Temporary: true}, ttl)
}

// TokenPair is an access and refresh token sharing one token id (the session id).
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// IssuePair issues an access and a refresh token bound to one fresh token id.
func (p *TokenIssuer) IssuePair(identityID string, orgID int64, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	tokenID, err := NewTokenID()
	if err != nil {
		return TokenPair{}, err
	}
	access, err := p.issueWithID(identityID, tokenID, Claims{Type: TokenTypeAccess, OrgID: orgID}, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := p.issueWithID(identityID, tokenID, Claims{Type: TokenTypeRefresh, OrgID: orgID}, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (p *TokenIssuer) issueWithID(identityID, tokenID string, claims Claims, ttl time.Duration) (IssuedToken, error) {
	if identityID == "" {
		return IssuedToken{}, errors.New("identity id is required")
	}
	if ttl <= 0 {
		return IssuedToken{}, errors.New("ttl must be positive")
	}
	now := p.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   identityID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Claims: claims,
	}
	signed, err := jwt.NewWithClaims(signingMethod, tc).SignedString(p.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return IssuedToken{Token: signed, TokenID: tokenID, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Validate verifies signature, pinned algorithm, issuer and expiry.
func (p *TokenIssuer) Validate(tokenString string) (*Validated, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	tc := &tokenClaims{}
	token, err := parser.ParseWithClaims(tokenString, tc, func(t *jwt.Token) (interface{}, error) {
		alg, _ := t.Header["alg"].(string)
		if alg != signingMethod.Alg() || t.Method != signingMethod {
			return nil, errAlgorithmMismatch
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrTokenUnparseable
	}
	if tc.Subject == "" || tc.ID == "" {
		return nil, ErrTokenMalformed
	}
	v := &Validated{
		IdentityID: tc.Subject,
		TokenID:    tc.ID,
		Claims:     tc.Claims,
	}
	if tc.IssuedAt != nil {
		v.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		v.ExpiresAt = tc.ExpiresAt.Time
	}
	return v, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, errAlgorithmMismatch):
		return ErrTokenUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unknown alg values fail before the key func runs.
		return ErrTokenUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenUnparseable
	}
}

// NewTokenID returns a 128-bit random hex token id.
func NewTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
