// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from an access token without
// the server's key.
type TokenInfo struct {
	// Subject is the account email.
	Subject string
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
}

// Expired reports whether the token has an expiry at or before now.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ParseToken reads the claims of a JWT without verifying its
// signature. Only the server can verify; this is for showing status
// and expiry locally.
func ParseToken(raw string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("forum: parsing token: %w", err)
	}

	info := &TokenInfo{}
	subject, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("forum: token subject: %w", err)
	}
	info.Subject = subject

	expiry, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("forum: token expiry: %w", err)
	}
	if expiry != nil {
		info.ExpiresAt = expiry.Time
	}
	return info, nil
}
