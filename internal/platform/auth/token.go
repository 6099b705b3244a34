package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a token asserts about its bearer.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   Role
	Name   string
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// Principal is the verified identity bound to a request.
type Principal struct {
	Identity
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(id Identity, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*Principal, error)
}

type JWTIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret []byte, issuer string) *JWTIssuer {
	return &JWTIssuer{key: secret, issuer: issuer, now: time.Now}
}

func (j *JWTIssuer) Issue(id Identity, ttl time.Duration) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: id.Email,
		Role:  id.Role,
		Name:  id.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (j *JWTIssuer) Verify(tokenStr string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return j.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return &Principal{
		Identity: Identity{
			UserID: uid,
			Email:  claims.Email,
			Role:   claims.Role,
			Name:   claims.Name,
		},
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
