/* Copyright 2025 Matsync Authors
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

// Package client provides a remote.Store backed by the document server's HTTP API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrContentTypeMismatch is returned when the server responds with an unexpected Content-Type
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 Not Found error
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

const contentTypeApplicationJSON = "application/json"

const (
	// rateLimitPerSecond is the max requests per second the client will make
	rateLimitPerSecond = 50
	// rateLimitBurst is the burst capacity for rate limiting
	rateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient(timeout time.Duration) *http.Client {
	interval := time.Second / time.Duration(rateLimitPerSecond)

	return &http.Client{
		Timeout: timeout,
		Transport: &rateLimitedTransport{
			transport: http.DefaultTransport,
			limiter:   rate.NewLimiter(rate.Every(interval), rateLimitBurst),
		},
	}
}

// Client talks to the document server
type Client struct {
	// Endpoint is the API root, e.g. http://localhost:3001/api
	Endpoint   string
	APIKey     string
	Version    string
	HTTPClient *http.Client
}

// New returns a client for the given endpoint with a rate limited HTTP client
func New(endpoint, apiKey string) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKey:     apiKey,
		HTTPClient: NewRateLimitedHTTPClient(30 * time.Second),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	return &http.Client{}
}

func documentPath(col model.Collection, id string) string {
	return fmt.Sprintf("/v1/collections/%s/%s", url.PathEscape(string(col)), url.PathEscape(id))
}

func (c *Client) newReq(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", c.Endpoint, path)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	if body != nil {
		req.Header.Set("Content-Type", contentTypeApplicationJSON)
	}
	if c.Version != "" {
		req.Header.Set("Client-Version", c.Version)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}

	return req, nil
}

// checkRespErr returns an *HTTPError if the response indicates an error
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(string(body), "\n"),
	}
}

func checkContentType(res *http.Response) error {
	got := res.Header.Get("Content-Type")
	if !strings.HasPrefix(got, contentTypeApplicationJSON) {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Is the endpoint configured correctly?", got, contentTypeApplicationJSON)
	}

	return nil
}

// do performs the request. A 404 response is reported as remote.ErrNotFound.
// On success the caller must close the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, expectJSON bool) (*http.Response, error) {
	req, err := c.newReq(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"method": method, "path": path}).Debug("HTTP request")

	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "making http request")
	}

	log.WithFields(log.Fields{"method": method, "path": path, "status": res.StatusCode}).Debug("HTTP response")

	if err := checkRespErr(res); err != nil {
		res.Body.Close()

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, errors.Wrap(remote.ErrNotFound, path)
		}

		return nil, errors.Wrap(err, "server responded with an error")
	}

	if expectJSON {
		if err := checkContentType(res); err != nil {
			res.Body.Close()
			return nil, errors.Wrap(err, "unexpected Content-Type")
		}
	}

	return res, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	res, err := c.do(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "unmarshalling the payload")
	}

	return nil
}

// ListResp is the response from the list documents endpoint
type ListResp struct {
	Documents []remote.Entry `json:"documents"`
}

// List implements remote.Store
func (c *Client) List(ctx context.Context, col model.Collection) ([]remote.Entry, error) {
	var resp ListResp

	path := fmt.Sprintf("/v1/collections/%s", url.PathEscape(string(col)))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "listing %s", col)
	}

	if resp.Documents == nil {
		return []remote.Entry{}, nil
	}

	return resp.Documents, nil
}

// Get implements remote.Store
func (c *Client) Get(ctx context.Context, col model.Collection, id string) (remote.Document, error) {
	var doc remote.Document

	if err := c.doJSON(ctx, http.MethodGet, documentPath(col, id), nil, &doc); err != nil {
		return remote.Document{}, errors.Wrapf(err, "getting %s/%s", col, id)
	}

	return doc, nil
}

// Exists implements remote.Store
func (c *Client) Exists(ctx context.Context, col model.Collection, id string) (bool, error) {
	res, err := c.do(ctx, http.MethodHead, documentPath(col, id), nil, false)
	if remote.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "checking %s/%s", col, id)
	}
	res.Body.Close()

	return true, nil
}

// Put implements remote.Store
func (c *Client) Put(ctx context.Context, col model.Collection, id string, data []byte) (remote.Entry, error) {
	var entry remote.Entry

	if err := c.doJSON(ctx, http.MethodPut, documentPath(col, id), data, &entry); err != nil {
		return remote.Entry{}, errors.Wrapf(err, "putting %s/%s", col, id)
	}

	return entry, nil
}

// Delete implements remote.Store
func (c *Client) Delete(ctx context.Context, col model.Collection, id string) error {
	res, err := c.do(ctx, http.MethodDelete, documentPath(col, id), nil, false)
	if err != nil {
		return errors.Wrapf(err, "deleting %s/%s", col, id)
	}
	res.Body.Close()

	return nil
}

// Ping implements remote.Prober
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}

	if err := c.doJSON(ctx, http.MethodGet, "/v1/ping", nil, &resp); err != nil {
		return errors.Wrap(err, "pinging the server")
	}
	if resp.Status != "ok" {
		return errors.Errorf("server status '%s'", resp.Status)
	}

	return nil
}
