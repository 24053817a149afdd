// Package secretary provides methods for admin token signing.
package secretary

import (
	"errors"
	"fmt"
	"time"

	"github.com/avreline/panelcore/internal/config"
	"github.com/avreline/panelcore/internal/models/modelclaims"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

// Secretary defines object structure and its attributes.
type Secretary struct {
	key []byte
}

// NewSecretaryService initializes a secretary service.
func NewSecretaryService(c *config.SecretConfig) (*Secretary, error) {
	if len(c.SecretKey) == 0 {
		return nil, errors.New("empty secret key was found")
	}
	return &Secretary{key: []byte(c.SecretKey)}, nil
}

// NewToken issues a signed access token for an administrative actor.
func (s *Secretary) NewToken(actor string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &modelclaims.ServiceClaims{
		Actor: actor,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(tokenTTL).Unix(),
		},
	})
	accessToken, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// ValidateToken verifies a token and returns the actor it was issued for.
func (s *Secretary) ValidateToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &modelclaims.ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*modelclaims.ServiceClaims); ok && token.Valid {
		return claims.Actor, nil
	}
	return "", errors.New("invalid access token")
}
