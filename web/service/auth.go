package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trojan-ui/trojan-ui/database/model"
)

// Claims carried by panel access tokens.
type Claims struct {
	Username   string `json:"username"`
	Permission int    `json:"permission"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies the bearer tokens handed out at login.
type AuthService struct {
	settingService SettingService
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	secret, err := s.settingService.GetJwtSecret()
	if err != nil {
		return "", err
	}
	ttl, err := s.settingService.GetTokenExpiry()
	if err != nil {
		return "", err
	}
	return signToken(user, secret, ttl, time.Now())
}

func (s *AuthService) ParseToken(token string) (*Claims, error) {
	secret, err := s.settingService.GetJwtSecret()
	if err != nil {
		return nil, err
	}
	return parseToken(token, secret)
}

func signToken(user *model.User, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Username:   user.Username,
		Permission: user.Permission,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !t.Valid || claims.Username == "" {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}

// IsUnauthorized reports whether err came from token or credential checks.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
