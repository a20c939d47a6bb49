// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides round trippers shared by the geocoding clients.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"
)

const redacted = "REDACTED"

// LoggingRoundTripper dumps every transaction to Writer. Query parameters
// named in Redact and the Authorization header are masked, so API keys never
// reach the trace.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
	Redact    []string
}

func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			line = line[:maxChars] + "…"
		}

		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	return lines
}

// redactRequest returns a copy of req that is safe to print.
func (t *LoggingRoundTripper) redactRequest(req *http.Request) *http.Request {
	out := req.Clone(req.Context())

	if out.Header.Get("Authorization") != "" {
		out.Header.Set("Authorization", redacted)
	}

	if len(t.Redact) == 0 || out.URL.RawQuery == "" {
		return out
	}

	q := out.URL.Query()
	for _, name := range t.Redact {
		if q.Has(name) {
			q.Set(name, redacted)
		}
	}

	u := *out.URL
	u.RawQuery = q.Encode()
	out.URL = &u

	return out
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) error {
	// The body stays with the real request; only headers and URL are shown.
	dump, err := httputil.DumpRequestOut(t.redactRequest(req), false)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n"), '>')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response, duration time.Duration) error {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP response: %w", err)
	}

	_, err = fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", duration)
	if err != nil {
		return fmt.Errorf("tracing HTTP response: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '<')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	if err := t.dumpRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		fmt.Fprintf(t.Writer, "< FAILED: [%v] %v\n", time.Since(start), err)

		return nil, err
	}

	if err := t.dumpResponse(resp, time.Since(start)); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.Headers {
			req.Header.Set(k, v)
		}
	}

	return t.Transport.RoundTrip(req)
}
