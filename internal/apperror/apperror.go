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

// Package apperror defines the error taxonomy the export pipeline uses to
// decide an HTTP status and whether a failure may still carry a JSON body.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by where it originated, not by its Go type.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindNotFound          Kind = "NOT_FOUND"
	KindDatabase          Kind = "DATABASE_ERROR"
	KindExport            Kind = "EXPORT_ERROR"
	KindProxyUpstreamDown Kind = "PROXY_UPSTREAM_DOWN"
	KindProxyTimeout      Kind = "PROXY_TIMEOUT"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Status returns the HTTP status code a Kind maps to when surfaced pre-flush.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindDatabase, KindExport, KindInternal:
		return http.StatusInternalServerError
	case KindProxyUpstreamDown:
		return http.StatusBadGateway
	case KindProxyTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying cause with a Kind so handlers can decide a
// status code and a post-flush action without type-switching on Go types.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a Kind-tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a Kind, preserving it for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for anything
// that wasn't produced by this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
