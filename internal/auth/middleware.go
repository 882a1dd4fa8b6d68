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

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/databeam/xlsxexport/internal/apperror"
	"github.com/databeam/xlsxexport/internal/httpjson"
)

type claimsKey struct{}

const bearerPrefix = "Bearer "

// GetClaims returns the verified claims attached by Middleware, or nil if
// the request was never authenticated (should not happen downstream of
// Middleware, but callers should not assume).
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Middleware enforces the bearer credential on every request it wraps.
// Verification never touches the database or any streaming resource -
// auth failures are cheap and fail before any pipeline work begins.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				httpjson.WriteError(w, apperror.New(apperror.KindUnauthorized, "missing bearer credential"), false)
				return
			}
			token := strings.TrimPrefix(header, bearerPrefix)

			claims, err := verifier.Verify(token)
			if err != nil {
				httpjson.WriteError(w, apperror.New(apperror.KindUnauthorized, "invalid or expired bearer credential"), false)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
