package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed       = errors.New("token malformed")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenSubjectMismatch = errors.New("token subject mismatch")
)

type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens. A token is valid for
// its whole TTL; there is no revocation, validity comes only from the signed
// claims and the clock.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue signs {sub: username, uid, iat, exp} with the process-wide secret.
func (t *TokenService) Issue(userID, username string) (string, error) {
	now := time.Now()
	c := Claims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(t.secret)
}

// Verify parses and signature-checks token and returns the embedded identity.
// Expiry is reported as ErrTokenExpired; every other parse or signature
// problem as ErrTokenMalformed.
func (t *TokenService) Verify(token string) (userID, username string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", "", ErrTokenMalformed
	}
	return c.UID, c.Subject, nil
}

// VerifySubject is Verify plus a check that the token was issued for the
// expected username, used when double-checking against a freshly loaded user.
func (t *TokenService) VerifySubject(token, expected string) (string, error) {
	uid, sub, err := t.Verify(token)
	if err != nil {
		return "", err
	}
	if sub != expected {
		return "", ErrTokenSubjectMismatch
	}
	return uid, nil
}
