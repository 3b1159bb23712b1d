package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("middleware: invalid token")

// Identity is who a token speaks for: an account playing one character, with
// the character's level and job at login.
type Identity struct {
	AccountID     int64  `json:"account_id"`
	CharacterID   int32  `json:"character_id"`
	CharacterName string `json:"character_name"`
	Level         int16  `json:"level,omitempty"`
	Job           int16  `json:"job,omitempty"`
}

// Claims is the JWT payload issued by the login service.
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for id with the given secret and TTL.
func GenerateToken(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a JWT string and returns the claims. A token must name
// a character.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CharacterID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
