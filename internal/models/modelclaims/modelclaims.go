// Package modelclaims provides types for admin token claims.
package modelclaims

import "github.com/golang-jwt/jwt"

type ServiceClaims struct {
	Actor string `json:"actor"`
	jwt.StandardClaims
}
