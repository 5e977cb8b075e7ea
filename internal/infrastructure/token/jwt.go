package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

// DefaultTTL matches the lifetime of the session cookie.
const DefaultTTL = 90 * 24 * time.Hour

// Claims is the payload of a session token. The user id is carried both as
// the registered subject and as the id claim read by older clients.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 session tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Ensure JWTIssuer implements the TokenIssuer interface.
var _ ports.TokenIssuer = (*JWTIssuer)(nil)

type Option func(*JWTIssuer)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) { i.now = now }
}

func NewJWTIssuer(secret string, ttl time.Duration, opts ...Option) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *JWTIssuer) TTL() time.Duration { return i.ttl }

func (i *JWTIssuer) Issue(subjectID string) (string, domain.SessionClaims, error) {
	if subjectID == "" {
		return "", domain.SessionClaims{}, errors.New("issue token: empty subject")
	}
	now := i.now().UTC()
	signed, err := i.sign(subjectID, now, now.Add(i.ttl))
	if err != nil {
		return "", domain.SessionClaims{}, err
	}
	// Report the instants as they are encoded, at second precision.
	return signed, domain.SessionClaims{
		SubjectID: subjectID,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(i.ttl).Truncate(time.Second),
	}, nil
}

// IssueExpired returns a correctly signed token whose expiry already passed.
// It replaces the session cookie on logout.
func (i *JWTIssuer) IssueExpired(subjectID string) (string, error) {
	past := i.now().UTC().Add(-time.Second)
	return i.sign(subjectID, past, past)
}

func (i *JWTIssuer) sign(subjectID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature before any claim, so an expired token with a
// bad signature is reported as a signature failure.
func (i *JWTIssuer) Verify(tokenString string) (domain.SessionClaims, error) {
	if tokenString == "" {
		return domain.SessionClaims{}, domain.ErrTokenMalformed
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.SessionClaims{}, mapParseError(err)
	}
	if !token.Valid || claims.IssuedAt == nil {
		return domain.SessionClaims{}, domain.ErrTokenInvalid
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return domain.SessionClaims{}, domain.ErrTokenInvalid
	}

	return domain.SessionClaims{
		SubjectID: subject,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", domain.ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
}
