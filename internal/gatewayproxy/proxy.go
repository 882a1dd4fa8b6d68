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

// Package gatewayproxy forwards a client request to the export service,
// injecting a freshly minted bearer credential and streaming the response
// back without buffering.
package gatewayproxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/databeam/xlsxexport/internal/auth"
	"github.com/databeam/xlsxexport/internal/log"
)

// PathRewrite maps a gateway-public path to the core's internal path.
type PathRewrite struct {
	From string
	To   string
}

// Forwarder proxies /exports/* to the export service over HTTP, streaming
// the response body through untouched.
type Forwarder struct {
	proxy *httputil.ReverseProxy
}

// trackingWriter gives the ErrorHandler visibility into whether any bytes
// already reached the client, the same sentinel the export controller
// keeps on its own side of the network boundary.
type trackingWriter struct {
	http.ResponseWriter
	written atomic.Bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	if n > 0 {
		t.written.Store(true)
	}
	return n, err
}

func (t *trackingWriter) WriteHeader(status int) {
	t.written.Store(true)
	t.ResponseWriter.WriteHeader(status)
}

func (t *trackingWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// NewForwarder builds a Forwarder targeting upstreamBase (e.g.
// "http://localhost:8090"), rewriting rewrite.From to rewrite.To and
// attaching a bearer token minted fresh per request.
func NewForwarder(upstreamBase string, rewrite PathRewrite, minter *auth.Minter) (*Forwarder, error) {
	target, err := url.Parse(upstreamBase)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	baseDirector := proxy.Director
	proxy.Director = func(r *http.Request) {
		baseDirector(r)
		if rewrite.From != "" && strings.HasPrefix(r.URL.Path, rewrite.From) {
			r.URL.Path = rewrite.To + strings.TrimPrefix(r.URL.Path, rewrite.From)
		}
		if token, err := minter.Mint(); err == nil {
			r.Header.Set("Authorization", "Bearer "+token)
		} else {
			log.Logger.WithError(err).Error("gatewayproxy: failed to mint bearer credential")
		}
	}

	// Passthrough mode: no body buffering, no periodic-flush batching that
	// would delay bytes reaching the client.
	proxy.FlushInterval = -1

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		status := classifyUpstreamError(err)
		log.Logger.WithError(err).WithField("status", status).Warn("gatewayproxy: upstream request failed")

		if tw, ok := w.(*trackingWriter); ok && tw.written.Load() {
			panic(http.ErrAbortHandler) // never append a body once bytes are already on the wire
		}
		w.WriteHeader(status)
	}

	return &Forwarder{proxy: proxy}, nil
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.proxy.ServeHTTP(&trackingWriter{ResponseWriter: w}, r)
}

// classifyUpstreamError maps a transport failure to the status-code-only
// response the gateway emits: 502 for connection refused, 504 for timeout,
// 502 as the conservative default for anything else reaching here.
func classifyUpstreamError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
