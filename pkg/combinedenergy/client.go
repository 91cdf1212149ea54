// Package combinedenergy is a client for the Combined Energy monitoring
// service. It logs in with account credentials to obtain a short-lived token,
// issues authenticated requests against the data-access host, and decodes the
// per-device reading payloads into typed records.
package combinedenergy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/timsavage/combined-energy-api/pkg/common"
	"github.com/timsavage/combined-energy-api/pkg/log"
)

const (
	userAccessHost = "https://onwatch.combined.energy"
	dataAccessHost = "https://ds20.combined.energy/data-service"
	mqttAccessHost = "https://dp20.combined.energy"

	// defaultExpiryWindow shortens the advertised token lifetime so a token
	// is refreshed before it can lapse mid-request.
	defaultExpiryWindow   = 5 * time.Minute
	defaultRequestTimeout = 10 * time.Second
)

// CombinedEnergy is an authenticated client for the Combined Energy API.
//
// A client is not safe for concurrent use: the token refresh sequence is
// check-then-act and sharing one client across goroutines without external
// locking can trigger redundant logins. Construct one client per flow, or
// guard calls with a mutex.
type CombinedEnergy struct {
	mobileOrEmail  string
	password       string
	installationID int

	userAccessHost string
	dataAccessHost string
	mqttAccessHost string

	expiryWindow   time.Duration
	requestTimeout time.Duration

	client      *http.Client
	closeClient bool
	now         func() time.Time

	jwt     string
	expires time.Time
}

// Option configures a client.
type Option func(*CombinedEnergy)

// WithHTTPClient supplies an externally owned http client. Close will not
// touch it.
func WithHTTPClient(client *http.Client) Option {
	return func(c *CombinedEnergy) {
		c.client = client
		c.closeClient = false
	}
}

// WithRequestTimeout overrides the default per-request deadline of 10s.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *CombinedEnergy) { c.requestTimeout = d }
}

// WithExpiryWindow overrides how far ahead of server-side expiry a token is
// considered stale.
func WithExpiryWindow(d time.Duration) Option {
	return func(c *CombinedEnergy) { c.expiryWindow = d }
}

// WithClock overrides the time source used for token expiry and relative
// reading ranges.
func WithClock(now func() time.Time) Option {
	return func(c *CombinedEnergy) { c.now = now }
}

// New returns a client for the given account and installation. The transport
// session is created lazily on first use unless one is supplied with
// WithHTTPClient.
func New(mobileOrEmail, password string, installationID int, opts ...Option) *CombinedEnergy {
	c := &CombinedEnergy{
		mobileOrEmail:  mobileOrEmail,
		password:       password,
		installationID: installationID,
		userAccessHost: userAccessHost,
		dataAccessHost: dataAccessHost,
		mqttAccessHost: mqttAccessHost,
		expiryWindow:   defaultExpiryWindow,
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestOptions struct {
	method  string
	accept  string
	form    url.Values
	timeout time.Duration
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// makeRequest performs one HTTP call and decodes the JSON body into dest,
// translating transport and status failures into the package error taxonomy.
func (c *CombinedEnergy) makeRequest(ctx context.Context, rawURL string, params url.Values, opts requestOptions, dest any) error {
	if c.client == nil {
		c.client = common.HTTPClient(0)
		c.closeClient = true
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = c.requestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	method := opts.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.form != nil {
		body = strings.NewReader(opts.form.Encode())
	}

	log.Ctx(ctx).Debug("request", slog.String("method", method), slog.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return &TransportError{Message: "failed to build request", Err: err}
	}
	accept := opts.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "CombinedEnergy/"+common.Version())
	if opts.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Message: "timeout occurred while connecting to the Combined Energy API"}
		}
		log.Ctx(ctx).Error("socket error", slog.Any("error", err))
		return &TransportError{Message: "error occurred while communicating with the Combined Energy API", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Message: "timeout occurred while reading from the Combined Energy API"}
		}
		return &TransportError{Message: "failed to read response body", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &PermissionError{Message: "current user does not have access to the specified resource"}
	case resp.StatusCode == http.StatusInternalServerError:
		// Capture the raw body before raising; the service reports most
		// faults through this status with a descriptive payload.
		log.Ctx(ctx).Error("server error", slog.String("body", string(respBody)))
		return &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ServerError{StatusCode: resp.StatusCode}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return &TransportError{Message: "failed to decode response", Err: err}
	}
	return nil
}

// Login obtains a web token from the user-access host. The server signals a
// rejected login through the payload status rather than the HTTP status.
func (c *CombinedEnergy) Login(ctx context.Context) (*Login, error) {
	form := url.Values{}
	form.Set("mobileOrEmail", c.mobileOrEmail)
	form.Set("pass", c.password)
	form.Set("store", "false")

	var login Login
	err := c.makeRequest(ctx, c.userAccessHost+"/user/Login", nil, requestOptions{
		method: http.MethodPost,
		form:   form,
	}, &login)
	if err != nil {
		return nil, err
	}

	if login.Status != "ok" {
		msg := login.ErrorMessage
		if msg == "" {
			msg = "Login failed"
		}
		return nil, &AuthenticationError{Message: msg}
	}

	login.Created = c.now()
	return &login, nil
}

// ensureToken logs in (or re-logs in) when no token is cached or the cached
// token has passed its expiry window.
func (c *CombinedEnergy) ensureToken(ctx context.Context) error {
	if c.jwt != "" && !c.now().After(c.expires) {
		return nil
	}
	if c.jwt == "" {
		log.Ctx(ctx).Info("login required")
	} else {
		log.Ctx(ctx).Info("login expired; re-login")
	}

	login, err := c.Login(ctx)
	if err != nil {
		return err
	}
	c.jwt = login.JWT
	c.expires = login.Expires(c.expiryWindow)
	return nil
}

// request performs an authenticated GET against the data-access host,
// appending the cached token to the query parameters.
func (c *CombinedEnergy) request(ctx context.Context, rawURL string, params url.Values, dest any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	if params.Get("jwt") == "" {
		params.Set("jwt", c.jwt)
	}
	return c.makeRequest(ctx, rawURL, params, requestOptions{}, dest)
}

// User fetches details of the currently logged in user.
func (c *CombinedEnergy) User(ctx context.Context) (*CurrentUser, error) {
	var user CurrentUser
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Installation fetches details of the configured installation.
func (c *CombinedEnergy) Installation(ctx context.Context) (*Installation, error) {
	var installation Installation
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/installation", c.installationParams(), &installation); err != nil {
		return nil, err
	}
	return &installation, nil
}

// InstallationCustomers fetches the customers associated with the
// installation.
func (c *CombinedEnergy) InstallationCustomers(ctx context.Context) (*InstallationCustomers, error) {
	var customers InstallationCustomers
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/inst-customers", c.installationParams(), &customers); err != nil {
		return nil, err
	}
	return &customers, nil
}

// CommunicationStatus fetches the connection state of the installation's
// monitor.
func (c *CombinedEnergy) CommunicationStatus(ctx context.Context) (*ConnectionStatus, error) {
	var status ConnectionStatus
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/comm-stat", c.installationParams(), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CommunicationHistory fetches the connect/disconnect history of the
// installation's monitor.
func (c *CombinedEnergy) CommunicationHistory(ctx context.Context) (*ConnectionHistory, error) {
	var history ConnectionHistory
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/comm-hist", c.installationParams(), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// Readings fetches per-device time series for the window [rangeStart,
// rangeEnd] sampled every increment seconds. A zero rangeEnd means "through
// the latest available sample"; a zero rangeStart leaves the window start to
// the server.
func (c *CombinedEnergy) Readings(ctx context.Context, rangeStart, rangeEnd time.Time, increment int) (*Readings, error) {
	params := c.installationParams()
	params.Set("rangeStart", formatRange(rangeStart))
	params.Set("rangeEnd", formatRange(rangeEnd))
	params.Set("seconds", strconv.Itoa(increment))

	var body json.RawMessage
	if err := c.request(ctx, c.dataAccessHost+"/dataAccess/readings", params, &body); err != nil {
		return nil, err
	}
	return decodeReadings(ctx, body)
}

// LastReadings fetches readings covering the trailing delta up to now,
// sampled every increment seconds.
func (c *CombinedEnergy) LastReadings(ctx context.Context, delta time.Duration, increment int) (*Readings, error) {
	if delta <= 0 {
		return nil, &InvalidArgumentError{Message: "a positive time range must be provided"}
	}
	return c.Readings(ctx, c.now().Add(-delta), time.Time{}, increment)
}

// StartLogSession signals the service to (re)start the log session that
// drives reading delivery. This endpoint is known to occasionally hang on
// the remote side while still applying its effect, so a timeout is reported
// as success rather than an error.
func (c *CombinedEnergy) StartLogSession(ctx context.Context) (bool, error) {
	if err := c.ensureToken(ctx); err != nil {
		return false, err
	}

	form := url.Values{}
	form.Set("i", strconv.Itoa(c.installationID))
	form.Set("jwt", c.jwt)

	var result struct {
		Status string `json:"status"`
	}
	err := c.makeRequest(ctx, c.mqttAccessHost+"/mqtt2/user/LogSessionStart", nil, requestOptions{
		method: http.MethodPost,
		form:   form,
	}, &result)
	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			log.Ctx(ctx).Warn("log session start timed out", slog.Any("error", err))
			return true, nil
		}
		return false, err
	}
	return result.Status == "ok", nil
}

// Close releases the transport session if the client created it itself.
// Calling Close more than once, or on a client constructed with an external
// http client, is a no-op.
func (c *CombinedEnergy) Close() {
	if c.client != nil && c.closeClient {
		c.client.CloseIdleConnections()
		c.client = nil
	}
}

func (c *CombinedEnergy) installationParams() url.Values {
	params := url.Values{}
	params.Set("i", strconv.Itoa(c.installationID))
	return params
}

func formatRange(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
