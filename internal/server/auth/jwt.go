// Package auth issues and verifies voting-station tokens.
//
// A station token is an HS256 JWT naming the station and the tenant it
// serves. The tenant claim is the only source of tenant scope for voting
// and dashboard calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "ballotd"

// Claims holds the registered claims plus the station scope.
type Claims struct {
	jwt.RegisteredClaims
	StationID string `json:"station_id"`
	TenantID  string `json:"tenant_id"`
}

// Station is the verified identity behind a token.
type Station struct {
	ID       string
	TenantID string
}

// GenerateToken signs a station token valid for validity from now. A
// non-positive validity yields a token that is already expired.
func GenerateToken(stationID, tenantID string, secretKey []byte, validity time.Duration) (string, error) {
	if stationID == "" || tenantID == "" {
		return "", errors.New("station and tenant are required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   stationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		StationID: stationID,
		TenantID:  tenantID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ParseToken verifies tokenString and returns the station it names.
// Expired tokens fail with common.ErrTokenExpired, anything else that does
// not verify with common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Station, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, errors.Join(common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.TenantID == "" || claims.StationID == "" {
		return nil, common.ErrInvalidToken
	}

	return &Station{ID: claims.StationID, TenantID: claims.TenantID}, nil
}
