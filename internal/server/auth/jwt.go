// Package auth issues and verifies plan tokens: short-lived HS256 JWTs that
// carry the caller's declared plan. Plan tokens gate quota resolution only,
// not identity — an invalid token degrades the caller to the default plan
// instead of failing the request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// PlanClaims includes the registered claims and the caller's plan name.
type PlanClaims struct {
	jwt.RegisteredClaims
	Plan string `json:"plan"`
}

// GeneratePlanToken signs a plan token valid for validityDuration.
func GeneratePlanToken(plan string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, PlanClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Plan: plan,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// PlanFromToken verifies tokenString and returns the plan claim.
func PlanFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &PlanClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	return claims.Plan, nil
}
