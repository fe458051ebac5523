// Package httpscenario loads a session-oriented HTTP API. Connect logs in and
// keeps the token the server hands back, Interact sends one of the configured
// requests with that token, and Close logs out.
package httpscenario

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/loadsurge/internal/scenario"
	"github.com/torosent/loadsurge/internal/tracing"
)

// Name is the registry name of the adapter.
const Name = "http"

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 256

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// HTTPStatus labels the error by status code in the error breakdown.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Request is one entry of the "requests" option, written as "METHOD /path"
// or just "/path" for a GET.
type Request struct {
	Method string
	Path   string
}

func parseRequest(raw string) (Request, error) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
		return Request{Method: http.MethodGet, Path: fields[0]}, nil
	case 2:
		return Request{Method: strings.ToUpper(fields[0]), Path: fields[1]}, nil
	default:
		return Request{}, fmt.Errorf("invalid request %q: want \"METHOD /path\"", raw)
	}
}

// Adapter drives HTTP sessions. Options:
//
//	base_url         service root (required)
//	login_path       default /login
//	login_method     default POST
//	login_body       request body for login
//	token_path       JSON path of the token in the login response ("token" or
//	                 "$.token"), default "token"; empty disables the token
//	token_regex      regular expression used instead of token_path; the first
//	                 capture group, if any, is the token
//	token_header     default Authorization
//	token_prefix     default "Bearer "
//	requests         list of "METHOD /path" entries, default ["GET /"]
//	logout_path      optional; no request on close when empty
//	logout_method    default DELETE
//	session_header   header carrying the session id, default X-Session-Id
//	headers          extra headers on every request
//	timeout          per request timeout, default 30s
//
// Paths and the login body may use {{session}}, {{worker}} and, after login,
// {{token}}.
type Adapter struct {
	base          *url.URL
	loginPath     string
	loginMethod   string
	loginBody     string
	token         tokenExtractor
	tokenHeader   string
	tokenPrefix   string
	requests      []Request
	logoutPath    string
	logoutMethod  string
	sessionHeader string
	headers       http.Header

	env    scenario.Env
	client *http.Client
}

type session struct {
	id    string
	token string
}

// New returns an uninitialised adapter; suitable as a scenario.Factory.
func New() scenario.Adapter {
	return &Adapter{}
}

func (a *Adapter) Init(_ context.Context, env scenario.Env) error {
	a.env = env
	opts := env.Options

	rawBase := scenario.StringOption(opts, "base_url", "")
	if rawBase == "" {
		return fmt.Errorf("http scenario: base_url option is required")
	}
	base, err := url.Parse(rawBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("http scenario: invalid base_url %q", rawBase)
	}
	a.base = base

	a.loginPath = scenario.StringOption(opts, "login_path", "/login")
	a.loginMethod = strings.ToUpper(scenario.StringOption(opts, "login_method", http.MethodPost))
	a.loginBody = scenario.StringOption(opts, "login_body", "")
	token, err := newTokenExtractor(
		scenario.StringOption(opts, "token_path", "token"),
		scenario.StringOption(opts, "token_regex", ""),
	)
	if err != nil {
		return fmt.Errorf("http scenario: %w", err)
	}
	a.token = token
	a.tokenHeader = scenario.StringOption(opts, "token_header", "Authorization")
	a.tokenPrefix = scenario.StringOption(opts, "token_prefix", "Bearer ")
	a.logoutPath = scenario.StringOption(opts, "logout_path", "")
	a.logoutMethod = strings.ToUpper(scenario.StringOption(opts, "logout_method", http.MethodDelete))
	a.sessionHeader = scenario.StringOption(opts, "session_header", "X-Session-Id")

	rawRequests := scenario.StringSliceOption(opts, "requests")
	if len(rawRequests) == 0 {
		rawRequests = []string{"GET /"}
	}
	a.requests = a.requests[:0]
	for _, raw := range rawRequests {
		req, err := parseRequest(raw)
		if err != nil {
			return fmt.Errorf("http scenario: %w", err)
		}
		a.requests = append(a.requests, req)
	}

	a.headers = make(http.Header)
	for k, v := range scenario.StringMapOption(opts, "headers") {
		a.headers.Set(k, v)
	}

	timeout, err := scenario.DurationOption(opts, "timeout", 30*time.Second)
	if err != nil {
		return fmt.Errorf("http scenario: %w", err)
	}
	maxConns, err := scenario.IntOption(opts, "max_conns_per_host", 0)
	if err != nil {
		return fmt.Errorf("http scenario: %w", err)
	}
	a.client = newClient(timeout, maxConns)
	return nil
}

func (a *Adapter) Connect(ctx context.Context, sessionID string) (scenario.Handle, error) {
	s := &session{id: sessionID}
	data, err := a.do(ctx, "login", a.loginMethod, a.loginPath, a.loginBody, s)
	if err != nil {
		return nil, err
	}
	if a.token.enabled() {
		token, ok := a.token.extract(data)
		if !ok {
			return nil, fmt.Errorf("login: no token at %q in response", a.token)
		}
		s.token = token
	}
	return s, nil
}

// Interact sends one configured request, picked with the worker's random
// stream.
func (a *Adapter) Interact(ctx context.Context, handle scenario.Handle) error {
	s, ok := handle.(*session)
	if !ok {
		return fmt.Errorf("http scenario: unexpected handle %T", handle)
	}
	req := a.requests[0]
	if len(a.requests) > 1 {
		req = a.requests[a.env.RandomNumberBetween(0, len(a.requests))]
	}
	_, err := a.do(ctx, "request", req.Method, req.Path, "", s)
	return err
}

func (a *Adapter) Close(ctx context.Context, handle scenario.Handle) error {
	s, ok := handle.(*session)
	if !ok {
		return fmt.Errorf("http scenario: unexpected handle %T", handle)
	}
	if a.logoutPath == "" {
		return nil
	}
	_, err := a.do(ctx, "logout", a.logoutMethod, a.logoutPath, "", s)
	return err
}

func (a *Adapter) do(ctx context.Context, op, method, path, body string, s *session) ([]byte, error) {
	path = s.expand(path, a.env.WorkerID)
	body = s.expand(body, a.env.WorkerID)
	target, err := a.base.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid path %q: %w", op, path, err)
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for key, values := range a.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.sessionHeader != "" {
		req.Header.Set(a.sessionHeader, s.id)
	}
	if s.token != "" && a.tokenHeader != "" {
		req.Header.Set(a.tokenHeader, a.tokenPrefix+s.token)
	}
	tracing.InjectHTTPHeaders(ctx, req.Header)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := bytes.TrimSpace(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return data, nil
}
