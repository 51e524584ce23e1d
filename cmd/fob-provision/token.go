//go:build !production

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Provisioning is gated by a factory-signed token so a stolen service
// laptop cannot re-key devices. The factory key arrives via the service
// channel, never in the repo.
const provisioningAudience = "fob-provision"

func checkAuthorization(tokenPath string) error {
	factoryKey := os.Getenv("FOB_FACTORY_KEY")
	if tokenPath == "" || factoryKey == "" {
		return fmt.Errorf("provisioning requires -authorization and $FOB_FACTORY_KEY")
	}
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return fmt.Errorf("reading provisioning token: %w", err)
	}

	token, err := jwt.Parse(strings.TrimSpace(string(raw)),
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(factoryKey), nil
		},
		jwt.WithAudience(provisioningAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("invalid provisioning token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid provisioning token")
	}
	return nil
}
