package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("authentication token not provided")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the resolved result of a verified credential. The rest of the
// system only ever sees this pair, never the token internals.
type Identity struct {
	UserId   int
	Username string
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	signingKey    []byte
	tokenDuration time.Duration
}

func NewTokenManager(signingKey []byte, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{
		signingKey:    signingKey,
		tokenDuration: tokenDuration,
	}
}

func (tm *TokenManager) Generate(userId int, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userId),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.tokenDuration)),
		},
	})

	return token.SignedString(tm.signingKey)
}

func (tm *TokenManager) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	var userId int
	if _, err := fmt.Sscanf(c.Subject, "%d", &userId); err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject claim", ErrInvalidToken)
	}

	return Identity{UserId: userId, Username: c.Username}, nil
}

// ExtractBearer pulls the token out of an Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: malformed Authorization header", ErrInvalidToken)
	}

	return parts[1], nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
