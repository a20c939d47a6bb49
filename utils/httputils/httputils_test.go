// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRoundTripper answers with a fixed response and keeps the last
// request it saw.
type recordingRoundTripper struct {
	response    *http.Response
	err         error
	lastRequest *http.Request
}

func (d *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req
	if d.err != nil {
		return nil, d.err
	}

	return d.response, nil
}

func okResponse(body string) *http.Response {
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestLoggingRoundTripper(t *testing.T) {
	var trace bytes.Buffer

	lt := &LoggingRoundTripper{
		Transport: &recordingRoundTripper{response: okResponse(`{"status":"OK"}`)},
		Writer:    &trace,
		DumpBody:  true,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/geocode?address=Heredia", nil)
	require.NoError(t, err)

	resp, err := lt.RoundTrip(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK"}`, string(body), "the body must still be readable after the dump")

	out := trace.String()
	assert.Contains(t, out, "> GET /geocode?address=Heredia")
	assert.Contains(t, out, "< RESPONSE: [")
	assert.Contains(t, out, `< {"status":"OK"}`)
}

func TestLoggingRoundTripperRedacts(t *testing.T) {
	var trace bytes.Buffer

	inner := &recordingRoundTripper{response: okResponse("")}
	lt := &LoggingRoundTripper{
		Transport: inner,
		Writer:    &trace,
		Redact:    []string{"key"},
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/geocode?address=x&key=s3cr3t", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer t0k3n")

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)

	out := trace.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "t0k3n")
	assert.Contains(t, out, "key=REDACTED")

	// The request that goes out is untouched.
	assert.Equal(t, "s3cr3t", inner.lastRequest.URL.Query().Get("key"))
	assert.Equal(t, "Bearer t0k3n", inner.lastRequest.Header.Get("Authorization"))
}

func TestLoggingRoundTripperFailure(t *testing.T) {
	var trace bytes.Buffer

	boom := errors.New("connection refused")
	lt := &LoggingRoundTripper{
		Transport: &recordingRoundTripper{err: boom},
		Writer:    &trace,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, trace.String(), "< FAILED: [")
}

func TestLoggingRoundTripperSilent(t *testing.T) {
	inner := &recordingRoundTripper{response: okResponse("")}
	lt := &LoggingRoundTripper{Transport: inner}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)
	assert.Same(t, req, inner.lastRequest)
}

func TestAbbreviate(t *testing.T) {
	lines := abbreviate([]string{"short", strings.Repeat("x", 600)}, '>')

	require.Len(t, lines, 2)
	assert.Equal(t, "> short", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "…"))
	assert.Len(t, []rune(lines[1]), 2+512+1)
}

func TestAppendRequestHeadersRoundTripper(t *testing.T) {
	inner := &recordingRoundTripper{response: okResponse("")}
	atr := &AppendRequestHeadersRoundTripper{
		Transport: inner,
		Headers:   map[string]string{"User-Agent": "pinpoint/test"},
	}

	req, err := http.NewRequest(http.MethodPost, "http://example.org", nil)
	require.NoError(t, err)

	_, err = atr.RoundTrip(req)
	require.NoError(t, err)

	require.NotNil(t, inner.lastRequest)
	assert.Equal(t, "pinpoint/test", inner.lastRequest.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("User-Agent"), "the caller's request is not mutated")
}
