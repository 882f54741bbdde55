package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims tags a bearer token with the principal type it authenticates.
// Subject carries the principal id and ID the access token id.
type TokenClaims struct {
	PrincipalType string `json:"principal_type"`
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *TokenClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenID parses the jti claim.
func (c *TokenClaims) TokenID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// GenerateToken creates a signed JWT for a principal and access token id.
func GenerateToken(secret, principalType string, principalID, tokenID uuid.UUID, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &TokenClaims{
		PrincipalType: principalType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   principalID.String(),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
