package session

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// cookieClaims is the payload of the session cookie. The session id travels
// as the JWT ID.
type cookieClaims struct {
	jwt.RegisteredClaims
}

// signCookie creates the signed cookie value for a session id.
func signCookie(secret []byte, id string, expires time.Time) (string, error) {
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	return signed, nil
}

// parseCookie validates a cookie value and returns the session id it carries.
func parseCookie(secret []byte, value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &cookieClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing session cookie: %w", err)
	}

	claims, ok := token.Claims.(*cookieClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return "", fmt.Errorf("invalid session cookie")
	}
	return claims.ID, nil
}

// hashID returns the form of a session id that is stored server side.
func hashID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
