// Package api is a stateless client for the finance REST resources.
//
// Every call maps failures onto the core error taxonomy: a non-2xx response
// whose JSON body names an error is SERVER_REJECTED, anything else that goes
// wrong on the way (network, unexpected status, undecodable body) is
// TRANSPORT_ERROR. The client never retries and never caches.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/log"
)

// RequestIDHeader carries the mutation or reload id to the server.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 8 << 20

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Logger
}

// Options configures a Client. HTTPClient overrides the pooled default; its
// cookie jar, if any, is what carries the session.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient, err = newHTTPClientWithPooling(opts.Timeout)
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger.WithComponent(log.ComponentAPI),
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and a cookie jar for the server session.
func newHTTPClientWithPooling(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
	}, nil
}

// envelope is the status part shared by write and auth responses.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// response is a decoded JSON object keyed by top-level field.
type response struct {
	status int
	fields map[string]json.RawMessage
	raw    []byte
}

func (r response) envelope() envelope {
	var env envelope
	_ = json.Unmarshal(r.raw, &env)
	return env
}

// field decodes the named top-level field into out. An empty key decodes the
// whole body.
func (r response) field(key string, out any) error {
	data := r.raw
	if key != "" {
		v, ok := r.fields[key]
		if !ok {
			return fmt.Errorf("response has no %q field", key)
		}
		data = v
	}
	return json.Unmarshal(data, out)
}

// exchange performs one request and returns the decoded response without
// judging its status.
func (c *Client) exchange(ctx context.Context, method, path string, query url.Values, body any) (response, error) {
	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return response{}, core.NewTransportError(op+": encode body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return response{}, core.NewTransportError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := log.RequestID(ctx)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Request failed",
			log.NewFields().WithRequestID(requestID).WithError(err).ToSlice()...)
		return response{}, core.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, core.NewTransportError(op+": read body", err)
	}

	c.logger.DebugContext(ctx, "Request completed",
		log.NewFields().
			WithHTTPResponse(method, path, resp.StatusCode, time.Since(start).Milliseconds()).
			WithRequestID(requestID).
			ToSlice()...)

	out := response{status: resp.StatusCode, raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		// A body that is not a JSON object is left undecoded; callers that
		// need fields will fail with a decode error.
		_ = json.Unmarshal(raw, &out.fields)
	}
	return out, nil
}

// do performs a request and maps non-2xx responses and write envelopes with
// success=false onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (response, error) {
	resp, err := c.exchange(ctx, method, path, query, body)
	if err != nil {
		return response{}, err
	}

	env := resp.envelope()
	if resp.status < 200 || resp.status > 299 {
		if resp.fields != nil && env.reason() != "" {
			return response{}, core.NewServerRejected(resp.status, env.reason())
		}
		return response{}, core.NewTransportError(
			fmt.Sprintf("%s %s: unexpected status %d", method, path, resp.status), nil)
	}
	if env.Success != nil && !*env.Success {
		return response{}, core.NewServerRejected(resp.status, env.reason())
	}
	return resp, nil
}

// get reads one field of a GET response into T.
func get[T any](ctx context.Context, c *Client, path string, query url.Values, key string) (T, error) {
	var out T
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return out, err
	}
	if err := resp.field(key, &out); err != nil {
		return out, core.NewTransportError("GET "+path+": decode response", err)
	}
	return out, nil
}

// write sends a mutation and decodes the returned entity from key. An empty
// key ignores the body beyond its envelope.
func write[T any](ctx context.Context, c *Client, method, path string, body any, key string) (T, error) {
	var out T
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return out, err
	}
	if key == "" {
		return out, nil
	}
	if err := resp.field(key, &out); err != nil {
		return out, core.NewTransportError(method+" "+path+": decode response", err)
	}
	return out, nil
}
