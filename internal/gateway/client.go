// Package gateway is the single chokepoint between the portal and the remote
// matrimony REST API.
//
// EVERY upstream call goes through Client.do, which:
//  1. replays the caller's stored upstream cookies,
//  2. attaches "Authorization: Bearer <token>" when a token is stored
//     (via an oauth2 static token transport),
//  3. applies one blanket request timeout through the request context,
//  4. turns any 401 into a session reset: the UnauthorizedHandler is invoked
//     for the caller and the call fails with apperror.ErrUnauthorized,
//  5. normalizes every other non-2xx answer into an *apperror.AppError that
//     carries the backend's human-readable message.
//
// Nothing above this package inspects raw status codes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/model"
)

// DefaultTimeout mirrors the browser client's blanket request timeout.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response we read looking for a message.
const maxErrorBody = 64 << 10

// Config configures the gateway.
type Config struct {
	// BaseURL is the remote API root, e.g. "http://localhost:5000/api".
	BaseURL string
	// Timeout applies to every request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Transport is the underlying round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// UnauthorizedHandler is called once per 401 response with the caller whose
// credentials were rejected.
type UnauthorizedHandler func(caller model.Caller)

// Client talks to the remote API on behalf of one caller at a time.
type Client struct {
	base      *url.URL
	origin    string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger

	onUnauthorized UnauthorizedHandler
}

// New validates cfg and builds a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway: base URL %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("gateway: base URL %q has no host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:      base,
		origin:    base.Scheme + "://" + base.Host,
		timeout:   timeout,
		transport: transport,
		logger:    logger,
	}, nil
}

// OnUnauthorized registers the session-reset hook. It is set after
// construction because the session layer that implements it depends on the
// Client itself.
func (c *Client) OnUnauthorized(fn UnauthorizedHandler) {
	c.onUnauthorized = fn
}

// callOptions tweak how one call treats the response.
type callOptions struct {
	// authProbe marks calls whose 401 is an expected answer (who-am-I,
	// login). Those still fail with ErrUnauthorized, but the blanket reset
	// hook is not fired: the session resolver handles them itself.
	authProbe bool
}

// endpoint builds the absolute URL for an API path.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// httpClient returns a client for the caller. When a bearer token is stored
// the oauth2 transport adds the Authorization header.
func (c *Client) httpClient(creds model.Credentials) *http.Client {
	transport := c.transport
	if creds.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}),
			Base:   c.transport,
		}
	}
	return &http.Client{
		Transport: transport,
		// Upstream redirects are answers, not something to follow blindly
		// with the caller's credentials.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// getJSON / sendJSON are the common shapes of a call.
func (c *Client) getJSON(ctx context.Context, caller model.Caller, path string, query url.Values, out any) error {
	_, err := c.do(ctx, caller, http.MethodGet, c.endpoint(path, query), nil, "", out, callOptions{})
	return err
}

func (c *Client) sendJSON(ctx context.Context, caller model.Caller, method, path string, in, out any) error {
	_, err := c.sendJSONWith(ctx, caller, method, path, in, out, callOptions{})
	return err
}

func (c *Client) sendJSONWith(ctx context.Context, caller model.Caller, method, path string, in, out any, opts callOptions) ([]*http.Cookie, error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("gateway: encoding %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, caller, method, c.endpoint(path, nil), body, contentType, out, opts)
}

// do performs one upstream call and returns the cookies the upstream set.
func (c *Client) do(
	ctx context.Context,
	caller model.Caller,
	method, target string,
	body io.Reader,
	contentType string,
	out any,
	opts callOptions,
) ([]*http.Cookie, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: building %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range caller.Credentials.Cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.httpClient(caller.Credentials).Do(req)
	if err != nil {
		// A cancelled context is the caller walking away (superseded
		// resolution, client disconnect). Hand it back untouched so callers
		// can drop it silently.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if callCtx.Err() != nil {
			return nil, c.timedOut(method, req.URL.Path)
		}
		c.logger.Error("upstream request failed",
			slog.String("method", method),
			slog.String("url", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable(fmt.Errorf("gateway: %s %s: %w", method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		msg := "Your session has expired. Please sign in again."
		if opts.authProbe {
			// Probes keep the backend's wording ("Invalid credentials").
			var body upstreamError
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			if json.Unmarshal(raw, &body) == nil && body.text() != "" {
				msg = body.text()
			}
			return nil, apperror.Unauthorized(msg)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		if c.onUnauthorized != nil {
			c.onUnauthorized(caller)
		}
		return nil, apperror.Unauthorized(msg)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failure(method, req.URL.Path, resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if callCtx.Err() != nil {
				return nil, c.timedOut(method, req.URL.Path)
			}
			c.logger.Error("upstream sent an undecodable body",
				slog.String("method", method),
				slog.String("url", req.URL.Path),
				slog.String("error", err.Error()),
			)
			return nil, apperror.Unavailable(fmt.Errorf("gateway: decoding %s %s: %w", method, req.URL.Path, err))
		}
	}

	return resp.Cookies(), nil
}

// timedOut reports a call that outlived the blanket timeout while the
// caller's context was still live. The error does not wrap
// context.DeadlineExceeded: only the caller's own context signals abandonment.
func (c *Client) timedOut(method, path string) error {
	c.logger.Error("upstream request timed out",
		slog.String("method", method),
		slog.String("url", path),
		slog.Duration("timeout", c.timeout),
	)
	return apperror.Unavailable(fmt.Errorf("gateway: %s %s: no answer within %s", method, path, c.timeout))
}

// upstreamError is the error body shape of the remote API. Different routes
// use "message", "msg" or "error" for the human text.
type upstreamError struct {
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Error   string `json:"error"`
	Errors  []struct {
		Msg   string `json:"msg"`
		Param string `json:"param"`
		Path  string `json:"path"`
	} `json:"errors"`
}

func (e upstreamError) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	case len(e.Errors) > 0:
		msgs := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			if fe.Msg != "" {
				msgs = append(msgs, fe.Msg)
			}
		}
		return strings.Join(msgs, ", ")
	default:
		return e.Error
	}
}

func (e upstreamError) field() string {
	if len(e.Errors) == 0 {
		return ""
	}
	if e.Errors[0].Path != "" {
		return e.Errors[0].Path
	}
	return e.Errors[0].Param
}

// failure maps a non-2xx, non-401 response onto the apperror vocabulary.
func (c *Client) failure(method, path string, resp *http.Response) error {
	var body upstreamError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &body)
	msg := body.text()

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "The request was not valid."
		}
		return apperror.ValidationFailed(body.field(), msg)
	case http.StatusForbidden:
		if msg == "" {
			msg = "You do not have access to this resource."
		}
		return apperror.Forbidden(msg)
	case http.StatusNotFound:
		if msg == "" {
			msg = "Not found."
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: msg}
	case http.StatusConflict:
		if msg == "" {
			msg = "That already exists."
		}
		return &apperror.AppError{Err: apperror.ErrConflict, Message: msg}
	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "Too many attempts. Please wait before trying again."
		}
		return apperror.RateLimited(msg)
	}

	c.logger.Error("upstream returned an error status",
		slog.String("method", method),
		slog.String("url", path),
		slog.Int("status", resp.StatusCode),
		slog.String("message", msg),
	)
	return apperror.Unavailable(fmt.Errorf("gateway: %s %s: status %d: %s", method, path, resp.StatusCode, msg))
}

// ImageURL turns a stored photo path into a browser-loadable URL: absolute,
// data: and blob: URLs pass through; anything else is resolved against the
// API origin (the base URL without its path).
func (c *Client) ImageURL(stored string) string {
	switch {
	case stored == "":
		return ""
	case strings.HasPrefix(stored, "http://"), strings.HasPrefix(stored, "https://"),
		strings.HasPrefix(stored, "data:"), strings.HasPrefix(stored, "blob:"):
		return stored
	}
	return c.origin + "/" + strings.TrimLeft(stored, "/")
}
