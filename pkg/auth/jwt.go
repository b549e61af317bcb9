package auth

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every token failure: malformed, forged and
// expired tokens are indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated principal attached to a request or
// connection. It lives only as long as the request/connection context.
type Identity struct {
	Username string
	Roles    []Role
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Claims are the JWT claims carried by every issued token.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-SHA-256 signed bearer tokens.
// The signing key is read-only after construction and safe for concurrent use.
type TokenService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service from a base64-encoded secret.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("secret key required")
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, errors.New("secret key must be base64 encoded")
	}
	return &TokenService{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the service clock. Used by tests to probe the expiry
// boundary.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a new token carrying the identity's subject and role claims.
func (s *TokenService) Issue(identity Identity) (string, error) {
	if identity.Username == "" {
		return "", errors.New("identity requires a username")
	}
	now := s.now()
	claims := Claims{
		Roles: RoleNames(identity.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Validate verifies signature and expiry and returns the embedded identity.
// All failures collapse to ErrInvalidToken so that callers cannot build an
// oracle out of the distinction.
func (s *TokenService) Validate(tokenString string) (*Identity, error) {
	claims, err := s.parse(tokenString, true)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		Username: claims.Subject,
		Roles:    ParseRoles(claims.Roles),
	}, nil
}

// ExtractSubject returns the subject of a signature-verified token without
// confirming expiry. It exists for the connection handshake lookup path and
// must never stand in for an authorization decision.
func (s *TokenService) ExtractSubject(tokenString string) (string, error) {
	claims, err := s.parse(tokenString, false)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *TokenService) parse(tokenString string, validateClaims bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
