package ndi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/ndireport/internal/model"
)

// API paths relative to the controller base URL.
const (
	// LoginPath is the authentication endpoint.
	LoginPath = "/login"

	// EndpointsPath is the endpoint inventory query.
	EndpointsPath = "/sedgeapi/v1/cisco-nir/api/api/v1/endpoints"
)

// Default timeouts. These match what the controller's own tooling uses.
const (
	// DefaultConnectTimeout bounds TCP connect and the TLS handshake.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds the wait for response headers and any pause
	// while reading the response body.
	DefaultReadTimeout = 30 * time.Second
)

// Client is an authenticated session with one controller.
// A Client is not safe for concurrent use by multiple goroutines.
type Client struct {
	// baseURL is the controller URL; API paths are appended to its path.
	baseURL *url.URL

	// httpClient carries the cookie jar holding the login session.
	httpClient *http.Client

	// logger is used for request logging.
	logger *slog.Logger

	// verifyTLS enables certificate verification.
	verifyTLS bool

	// caFile is an optional PEM bundle trusted in addition to the system roots.
	caFile string

	// proxyAddress is an optional SOCKS5 proxy in "host:port" format.
	proxyAddress string

	connectTimeout time.Duration
	readTimeout    time.Duration

	// pageSize is the number of entries requested per page. Zero fetches the
	// whole collection in one request.
	pageSize int

	// maxBodySize limits each response body. Zero means no limit.
	maxBodySize int64

	// customHTTPClient replaces the client built from the transport options.
	customHTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithVerifyTLS enables or disables certificate verification.
// Verification is on by default; turning it off exposes the session
// (including the password) to anyone able to intercept the connection.
func WithVerifyTLS(verify bool) Option {
	return func(c *Client) {
		c.verifyTLS = verify
	}
}

// WithCAFile trusts the certificates in the given PEM file in addition to
// the system roots. This is the usual way to talk to a controller with a
// self-signed certificate without disabling verification.
func WithCAFile(path string) Option {
	return func(c *Client) {
		c.caFile = path
	}
}

// WithConnectTimeout sets the connect and TLS handshake timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout sets the response read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithProxy routes all connections through a SOCKS5 proxy ("host:port").
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithPageSize sets the number of entries fetched per request.
// Zero (the default) fetches the whole collection in one request, which
// requires a controller without a page size ceiling.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithMaxBodySize limits the size of each response body. Zero means no limit.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient uses hc instead of building an HTTP client from the
// transport options. A cookie jar is added when hc has none, because the
// login session lives in cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.customHTTPClient = hc
	}
}

// NewClient creates a client for the controller at baseURL.
//
// baseURL is either a full URL ("https://10.0.0.1:8443") or a bare host
// ("10.0.0.1"), in which case https is assumed. No network traffic happens
// until Login is called.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:        u,
		verifyTLS:      true,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.httpClient, err = c.newHTTPClient()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// parseBaseURL accepts a URL or a bare host and returns the controller URL.
func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return u, nil
}

// newHTTPClient builds the session's HTTP client.
func (c *Client) newHTTPClient() (*http.Client, error) {
	if c.customHTTPClient != nil {
		hc := *c.customHTTPClient
		if hc.Jar == nil {
			jar, err := newCookieJar()
			if err != nil {
				return nil, err
			}
			hc.Jar = jar
		}
		return &hc, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !c.verifyTLS, //nolint:gosec // Opt-in through configuration
	}
	if c.caFile != "" {
		pool, err := loadCertPool(c.caFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	dialer := &net.Dialer{Timeout: c.connectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   c.connectTimeout,
		ResponseHeaderTimeout: c.readTimeout,
		// Every request is sent with "Connection: close".
		DisableKeepAlives: true,
	}

	if c.proxyAddress != "" {
		socks, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := socks.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
	}

	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
	}, nil
}

func newCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// loadCertPool returns the system roots plus the certificates in path.
func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path) //nolint:gosec // User-provided CA path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA file %s", path)
	}
	return pool, nil
}

// BaseURL returns the controller URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// PageSize returns the configured page size (zero for a single full fetch).
func (c *Client) PageSize() int {
	return c.pageSize
}

// Login authenticates the session. The cookie the controller sets on success
// is sent with every later request.
func (c *Client) Login(ctx context.Context, creds model.Credentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	loginURL := c.resolve(LoginPath, nil)
	c.logger.Debug("sending login request",
		"url", loginURL,
		"domain", creds.Domain,
		"user", creds.Username,
	)

	status, body, err := c.send(ctx, "login", http.MethodPost, loginURL, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &AuthenticationError{StatusCode: apiErr.StatusCode}
		}
		return err
	}
	if !isSuccess(status) {
		return &AuthenticationError{StatusCode: status, Body: string(body)}
	}

	c.logger.Info("logged in", "url", c.BaseURL(), "user", creds.Username)
	return nil
}

// FetchAll retrieves every endpoint of a site.
//
// A count probe (count=1) reads totalItemsCount first. A site without
// endpoints yields an empty collection. Otherwise the entries are fetched with
// count=totalItemsCount in one request, or page by page with an offset when a
// page size is configured, until totalItemsCount entries have been read or the
// controller returns an empty page. Entries beyond totalItemsCount are dropped.
func (c *Client) FetchAll(ctx context.Context, siteName string) (*model.Collection, error) {
	probe, err := c.fetchPage(ctx, "count", siteName, 1, -1)
	if err != nil {
		return nil, err
	}

	total := probe.TotalItemsCount
	c.logger.Info("endpoint count", "site", siteName, "total", total)
	if total <= 0 {
		return model.NewEmptyCollection(), nil
	}

	if c.pageSize <= 0 || c.pageSize >= total {
		page, err := c.fetchPage(ctx, "fetch", siteName, total, -1)
		if err != nil {
			return nil, err
		}
		entries := page.Entries
		if entries == nil {
			entries = []*model.Record{}
		}
		if len(entries) != total {
			c.logger.Warn("entry count differs from reported total",
				"site", siteName, "total", total, "fetched", len(entries))
		}
		return &model.Collection{TotalItemsCount: total, Entries: entries}, nil
	}

	entries := make([]*model.Record, 0, total)
	for len(entries) < total {
		page, err := c.fetchPage(ctx, "fetch", siteName, c.pageSize, len(entries))
		if err != nil {
			return nil, err
		}
		if len(page.Entries) == 0 {
			c.logger.Warn("controller returned an empty page before the reported total",
				"site", siteName, "total", total, "fetched", len(entries))
			break
		}
		if len(page.Entries) > c.pageSize {
			c.logger.Warn("controller returned more entries than requested",
				"site", siteName, "requested", c.pageSize, "returned", len(page.Entries))
		}
		entries = append(entries, page.Entries...)
		c.logger.Debug("fetched page", "site", siteName, "fetched", len(entries), "total", total)
	}
	if len(entries) > total {
		c.logger.Warn("dropping entries beyond the reported total",
			"site", siteName, "total", total, "fetched", len(entries))
		entries = entries[:total]
	}

	return &model.Collection{TotalItemsCount: total, Entries: entries}, nil
}

// fetchPage issues one endpoints query. A negative offset omits the parameter.
func (c *Client) fetchPage(ctx context.Context, op, siteName string, count, offset int) (*model.Collection, error) {
	query := url.Values{}
	query.Set("siteName", siteName)
	query.Set("count", strconv.Itoa(count))
	if offset >= 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	pageURL := c.resolve(EndpointsPath, query)
	c.logger.Debug("querying endpoints", "op", op, "url", pageURL)

	status, body, err := c.send(ctx, op, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &APIError{Op: op, StatusCode: status, Body: string(body)}
	}

	var page model.Collection
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &APIError{
			Op:         op,
			StatusCode: status,
			Body:       string(body),
			Err:        fmt.Errorf("malformed JSON: %w", err),
		}
	}
	return &page, nil
}

// resolve appends path to the base URL and sets the query.
func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// send performs one request and reads the whole response body.
func (c *Client) send(ctx context.Context, op, method, rawURL string, payload []byte) (int, []byte, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Close = true
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body, cancel)
	if err != nil {
		if cause := context.Cause(reqCtx); errors.Is(cause, errReadTimeout) {
			return resp.StatusCode, nil, &TransportError{Op: op, URL: rawURL, Err: cause}
		}
		if errors.Is(err, ErrBodyTooLarge) {
			return resp.StatusCode, nil, &APIError{Op: op, StatusCode: resp.StatusCode, Err: err}
		}
		return resp.StatusCode, nil, &TransportError{Op: op, URL: rawURL, Err: err}
	}

	return resp.StatusCode, body, nil
}

// readBody reads r, cancelling the request when no data arrives for the read
// timeout, and enforces the body size limit.
func (c *Client) readBody(r io.Reader, cancel context.CancelCauseFunc) ([]byte, error) {
	if c.readTimeout > 0 {
		timer := time.AfterFunc(c.readTimeout, func() { cancel(errReadTimeout) })
		defer timer.Stop()
		r = &idleTimeoutReader{r: r, timer: timer, timeout: c.readTimeout}
	}

	if c.maxBodySize <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// idleTimeoutReader pushes its timer back every time data arrives.
type idleTimeoutReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

// Read implements io.Reader.
func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

// timeoutError is the cancellation cause used when a body read stalls.
type timeoutError struct{}

func (timeoutError) Error() string   { return "read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errReadTimeout error = timeoutError{}

// isSuccess reports whether status is a 2xx code.
func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
