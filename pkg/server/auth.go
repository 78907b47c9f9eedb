package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT claims for an administrator session.
type Claims struct {
	Admin string `json:"admin"`
	jwt.RegisteredClaims
}

// Authenticator checks an administrator's name and password.
type Authenticator func(name, password string) bool

// AuthService issues and validates admin API tokens.
type AuthService struct {
	check  Authenticator
	jwtKey []byte
	expiry time.Duration
}

// NewAuthService creates an auth service. If jwtSecret is empty, a random
// 32-byte key is generated, so tokens do not survive a restart.
func NewAuthService(check Authenticator, jwtSecret string, expirySeconds int) *AuthService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	expiry := time.Hour
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	return &AuthService{check: check, jwtKey: key, expiry: expiry}
}

// Login checks credentials and returns a signed token.
func (a *AuthService) Login(name, password string) (string, error) {
	if a.check == nil || !a.check(name, password) {
		return "", fmt.Errorf("invalid credentials")
	}
	return a.sign(name, time.Now())
}

func (a *AuthService) sign(name string, now time.Time) (string, error) {
	claims := Claims{
		Admin: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "gorom",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtKey)
}

// ValidateToken parses and validates a token string.
func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	}, jwt.WithIssuer("gorom"))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// RefreshToken issues a token with a fresh expiry for a still-valid one.
func (a *AuthService) RefreshToken(tokenStr string) (string, error) {
	claims, err := a.ValidateToken(tokenStr)
	if err != nil {
		return "", err
	}
	return a.sign(claims.Admin, time.Now())
}

// GenerateJWTSecret returns a random hex secret suitable for jwt_secret.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
