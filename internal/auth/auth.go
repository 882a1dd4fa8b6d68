/*
 * Copyright 2025 Clidey, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package auth mints and verifies the short-lived bearer credential the
// gateway attaches to every forwarded request. Unlike a user session, the
// token carries no identity: it is a trust handoff between two processes
// that share a secret, so there is no server-side session table to consult.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer   = "excel-export-app"
	Audience = "excel-export-api"
)

var (
	ErrMissingHeader = errors.New("auth: missing or malformed Authorization header")
	ErrInvalidToken  = errors.New("auth: signature or claims invalid")
	ErrExpiredToken  = errors.New("auth: token expired")
)

// Claims is the full set of claims this system mints and checks. No
// subject/user identity travels in the token - the gateway and core trust
// each other, not an end user.
type Claims struct {
	jwt.RegisteredClaims
}

// Minter produces bearer tokens on the gateway side.
type Minter struct {
	secret   []byte
	lifetime time.Duration
}

// NewMinter validates the secret length up front - a short secret is a
// configuration error, not a runtime one.
func NewMinter(secret []byte, lifetime time.Duration) (*Minter, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	if lifetime <= 0 {
		lifetime = 15 * time.Minute
	}
	return &Minter{secret: secret, lifetime: lifetime}, nil
}

// Mint produces a signed, short-lived bearer token.
func (m *Minter) Mint() (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verifier checks bearer tokens on the core side.
type Verifier struct {
	secret []byte
}

// NewVerifier validates the secret length up front, same as NewMinter.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	return &Verifier{secret: secret}, nil
}

// Verify parses and validates a token string, enforcing issuer, audience,
// signature and expiry. The three failure subkinds are distinguished only
// for logging/messages; callers all treat them as one 401.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithAudience(Audience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
