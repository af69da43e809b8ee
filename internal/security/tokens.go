package security

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims is the signed claim set shared by access and refresh tokens:
// subject is the user id, phone rides along so handlers can avoid a
// lookup for display purposes. Kind pins the token to one verify path
// on top of the per-kind secrets.
type Claims struct {
	Phone string `json:"phone"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenIssuer mints and verifies the access/refresh pair. The two kinds
// carry independent secrets and lifetimes; neither is persisted.
type TokenIssuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// IssuePair signs both tokens concurrently; either failure fails the pair.
func (i *TokenIssuer) IssuePair(userID, phone string, now time.Time) (TokenPair, error) {
	var (
		wg                    sync.WaitGroup
		access, refresh       string
		accessErr, refreshErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		access, accessErr = sign(userID, phone, kindAccess, i.AccessSecret, i.AccessTTL, now)
	}()
	go func() {
		defer wg.Done()
		refresh, refreshErr = sign(userID, phone, kindRefresh, i.RefreshSecret, i.RefreshTTL, now)
	}()
	wg.Wait()

	if accessErr != nil {
		return TokenPair{}, accessErr
	}
	if refreshErr != nil {
		return TokenPair{}, refreshErr
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return verify(token, kindAccess, i.AccessSecret)
}

func (i *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return verify(token, kindRefresh, i.RefreshSecret)
}

func sign(userID, phone, kind string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Phone: phone,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// verify collapses signature, expiry, malformed-payload, and wrong-kind
// failures into ErrInvalidToken so callers cannot distinguish them.
func verify(tokenString, kind string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
