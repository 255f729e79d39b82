package ndi

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/ndireport/internal/model"
)

const testCookie = "AuthCookie"

// fakeController is an in-memory controller API for tests.
type fakeController struct {
	mu sync.Mutex

	// entries is the endpoint inventory of every site.
	entries []map[string]any

	// maxPage caps count; zero means no cap.
	maxPage int

	// loginStatus overrides the login response status when non-zero.
	loginStatus int

	// requests records the query string of each endpoints request.
	requests []string
}

func (f *fakeController) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
			_, _ = w.Write([]byte(`{"error":"forced"}`))
			return
		}
		if creds["domain"] != "local" || creds["userName"] != "admin" || creds["userPasswd"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "session-1", Path: "/"})
		_, _ = w.Write([]byte(`{"token":"opaque"}`))
	})
	mux.HandleFunc(EndpointsPath, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(testCookie); err != nil || c.Value != "session-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"not logged in"}`))
			return
		}
		if !r.Close {
			t.Errorf("expected Connection: close on endpoints request")
		}

		f.mu.Lock()
		f.requests = append(f.requests, r.URL.RawQuery)
		f.mu.Unlock()

		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if f.maxPage > 0 && count > f.maxPage {
			count = f.maxPage
		}

		page := make([]map[string]any, 0)
		for i := offset; i < len(f.entries) && i < offset+count; i++ {
			page = append(page, f.entries[i])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalItemsCount": len(f.entries),
			"entries":         page,
		})
	})
	return mux
}

// newTestServer starts a TLS controller and returns a client that trusts it.
func newTestServer(t *testing.T, f *fakeController, opts ...Option) (*httptest.Server, *Client) {
	t.Helper()

	srv := httptest.NewTLSServer(f.handler(t))
	t.Cleanup(srv.Close)

	caFile := writeServerCA(t, srv)
	client, err := NewClient(srv.URL, append([]Option{WithCAFile(caFile)}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return srv, client
}

// writeServerCA writes the test server certificate as a PEM file.
func writeServerCA(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}
	return path
}

func testCredentials() model.Credentials {
	return model.Credentials{Domain: "local", Username: "admin", Password: "secret"}
}

func makeEntries(n int) []map[string]any {
	entries := make([]map[string]any, n)
	for i := range entries {
		entries[i] = map[string]any{"id": i + 1, "mac": fmt.Sprintf("00:00:00:00:00:%02x", i)}
	}
	return entries
}

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("bare host defaults to https", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.BaseURL() != "https://10.0.0.1" {
			t.Errorf("BaseURL() = %q, expected %q", client.BaseURL(), "https://10.0.0.1")
		}
	})

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("https://nd.example.com:8443/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := client.resolve(LoginPath, nil); got != "https://nd.example.com:8443/login" {
			t.Errorf("login URL = %q", got)
		}
	})

	t.Run("invalid addresses return ErrInvalidBaseURL", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"", "   ", "ftp://host", "https://"} {
			_, err := NewClient(addr)
			if !errors.Is(err, ErrInvalidBaseURL) {
				t.Errorf("NewClient(%q): expected ErrInvalidBaseURL, got %v", addr, err)
			}
		}
	})

	t.Run("missing CA file returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("10.0.0.1", WithCAFile(filepath.Join(t.TempDir(), "missing.pem")))
		if err == nil {
			t.Fatal("expected error for missing CA file")
		}
	})

	t.Run("CA file without certificates returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.pem")
		if err := os.WriteFile(path, []byte("not a certificate"), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := NewClient("10.0.0.1", WithCAFile(path))
		if err == nil || !strings.Contains(err.Error(), "no certificates") {
			t.Errorf("expected no certificates error, got %v", err)
		}
	})

	t.Run("proxy option creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("10.0.0.1", WithProxy("127.0.0.1:1080"), WithPageSize(500))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.PageSize() != 500 {
			t.Errorf("PageSize() = %d, expected 500", client.PageSize())
		}
	})
}

// TestClientLogin tests authentication.
func TestClientLogin(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials succeed", func(t *testing.T) {
		t.Parallel()

		_, client := newTestServer(t, &fakeController{})
		if err := client.Login(context.Background(), testCredentials()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejected credentials return AuthenticationError with body", func(t *testing.T) {
		t.Parallel()

		_, client := newTestServer(t, &fakeController{})
		creds := testCredentials()
		creds.Password = "wrong"

		err := client.Login(context.Background(), creds)
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthenticationError, got %v", err)
		}
		if authErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, expected 401", authErr.StatusCode)
		}
		if !strings.Contains(authErr.Body, "invalid credentials") {
			t.Errorf("Body = %q, expected server message", authErr.Body)
		}
	})

	t.Run("custom HTTP client keeps the session", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{entries: makeEntries(3)}
		srv := httptest.NewTLSServer(f.handler(t))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := client.Login(context.Background(), testCredentials()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collection, err := client.FetchAll(context.Background(), "site-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if collection.Len() != 3 {
			t.Errorf("expected 3 entries, got %d", collection.Len())
		}
	})

	t.Run("server error on login is AuthenticationError", func(t *testing.T) {
		t.Parallel()

		_, client := newTestServer(t, &fakeController{loginStatus: http.StatusInternalServerError})
		err := client.Login(context.Background(), testCredentials())
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected AuthenticationError 500, got %v", err)
		}
	})

	t.Run("untrusted certificate is a TransportError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewTLSServer((&fakeController{}).handler(t))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = client.Login(context.Background(), testCredentials())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if transportErr.Op != "login" {
			t.Errorf("Op = %q, expected login", transportErr.Op)
		}
	})

	t.Run("verification can be disabled", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewTLSServer((&fakeController{}).handler(t))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL, WithVerifyTLS(false))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := client.Login(context.Background(), testCredentials()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("connection refused is a TransportError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		client, err := NewClient(addr, WithConnectTimeout(time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = client.Login(context.Background(), testCredentials())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Errorf("expected TransportError, got %v", err)
		}
	})

	t.Run("slow response is a timeout", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL, WithReadTimeout(50*time.Millisecond))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = client.Login(context.Background(), testCredentials())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if !transportErr.Timeout() {
			t.Errorf("expected Timeout() to be true for %v", err)
		}
	})
}

// TestClientFetchAll tests the count probe and full retrieval.
func TestClientFetchAll(t *testing.T) {
	t.Parallel()

	t.Run("fetches every entry with count probe then full fetch", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{entries: makeEntries(7)}
		_, client := newTestServer(t, f)
		ctx := context.Background()
		if err := client.Login(ctx, testCredentials()); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		collection, err := client.FetchAll(ctx, "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if collection.TotalItemsCount != 7 || collection.Len() != 7 {
			t.Errorf("got total=%d len=%d, expected 7/7", collection.TotalItemsCount, collection.Len())
		}

		want := []string{"count=1&siteName=fabric-1", "count=7&siteName=fabric-1"}
		if len(f.requests) != len(want) {
			t.Fatalf("requests = %v, expected %v", f.requests, want)
		}
		for i := range want {
			if f.requests[i] != want[i] {
				t.Errorf("request %d = %q, expected %q", i, f.requests[i], want[i])
			}
		}
	})

	t.Run("zero total returns empty collection without second request", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{}
		_, client := newTestServer(t, f)
		ctx := context.Background()
		if err := client.Login(ctx, testCredentials()); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		collection, err := client.FetchAll(ctx, "empty-site")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !collection.IsEmpty() || collection.TotalItemsCount != 0 {
			t.Errorf("expected empty collection, got %+v", collection)
		}
		if len(f.requests) != 1 {
			t.Errorf("expected only the count probe, got %v", f.requests)
		}
	})

	t.Run("page size loop accumulates the reported total", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{entries: makeEntries(10), maxPage: 4}
		_, client := newTestServer(t, f, WithPageSize(4))
		ctx := context.Background()
		if err := client.Login(ctx, testCredentials()); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		collection, err := client.FetchAll(ctx, "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if collection.Len() != 10 {
			t.Fatalf("Len() = %d, expected 10", collection.Len())
		}
		for i, entry := range collection.Entries {
			if got := model.FormatValue(entry.Get("id")); got != strconv.Itoa(i+1) {
				t.Errorf("entry %d id = %q", i, got)
			}
		}
		// probe + 3 pages (4, 4, 2)
		if len(f.requests) != 4 {
			t.Errorf("expected 4 requests, got %v", f.requests)
		}
	})

	t.Run("oversized pages are capped at the reported total", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{entries: makeEntries(3)}
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == LoginPath {
				f.handler(t).ServeHTTP(w, r)
				return
			}
			// Ignores count and offset.
			_ = json.NewEncoder(w).Encode(map[string]any{"totalItemsCount": 5, "entries": f.entries})
		}))
		t.Cleanup(srv.Close)

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		client, err := NewClient(srv.URL,
			WithCAFile(writeServerCA(t, srv)),
			WithPageSize(2),
			WithLogger(logger),
		)
		if err != nil {
			t.Fatal(err)
		}

		collection, err := client.FetchAll(context.Background(), "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if collection.Len() != 5 {
			t.Errorf("Len() = %d, expected 5", collection.Len())
		}
		if !strings.Contains(logs.String(), "controller returned more entries than requested") {
			t.Errorf("expected oversized page warning, got:\n%s", logs.String())
		}
		if !strings.Contains(logs.String(), "dropping entries beyond the reported total") {
			t.Errorf("expected trim warning, got:\n%s", logs.String())
		}
	})

	t.Run("short inventory stops on empty page", func(t *testing.T) {
		t.Parallel()

		f := &fakeController{entries: makeEntries(5)}
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == LoginPath {
				f.handler(t).ServeHTTP(w, r)
				return
			}
			// Reports more entries than it ever returns.
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			entries := []map[string]any{}
			if r.URL.Query().Get("count") == "1" || offset < 5 {
				entries = f.entries[:1]
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"totalItemsCount": 100, "entries": entries})
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL, WithCAFile(writeServerCA(t, srv)), WithPageSize(10))
		if err != nil {
			t.Fatal(err)
		}
		collection, err := client.FetchAll(context.Background(), "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if collection.TotalItemsCount != 100 {
			t.Errorf("TotalItemsCount = %d, expected 100", collection.TotalItemsCount)
		}
		if collection.Len() != 5 {
			t.Errorf("Len() = %d, expected 5", collection.Len())
		}
	})

	t.Run("unauthenticated fetch is APIError with body", func(t *testing.T) {
		t.Parallel()

		_, client := newTestServer(t, &fakeController{entries: makeEntries(1)})
		_, err := client.FetchAll(context.Background(), "fabric-1")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Op != "count" {
			t.Errorf("got status=%d op=%q", apiErr.StatusCode, apiErr.Op)
		}
		status, body, ok := ResponseBody(err)
		if !ok || status != http.StatusUnauthorized || !strings.Contains(body, "not logged in") {
			t.Errorf("ResponseBody() = %d, %q, %v", status, body, ok)
		}
	})

	t.Run("malformed JSON is APIError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"totalItemsCount": 3, "entries": [`))
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.FetchAll(context.Background(), "fabric-1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Err == nil || !strings.Contains(apiErr.Error(), "malformed JSON") {
			t.Errorf("expected malformed JSON error, got %v", apiErr)
		}
	})

	t.Run("body over the size limit is APIError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"totalItemsCount": 1, "entries": [{"pad":"` + strings.Repeat("x", 256) + `"}]}`))
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(srv.URL, WithMaxBodySize(64))
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.FetchAll(context.Background(), "fabric-1")
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
		if _, body, _ := ResponseBody(err); body != BodyNotAvailable {
			t.Errorf("body = %q, expected %q", body, BodyNotAvailable)
		}
	})

	t.Run("cancelled context stops the request", func(t *testing.T) {
		t.Parallel()

		_, client := newTestServer(t, &fakeController{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.FetchAll(ctx, "fabric-1")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestResponseBody tests body extraction from errors.
func TestResponseBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantOK     bool
	}{
		{"auth error", &AuthenticationError{StatusCode: 401, Body: "denied"}, 401, "denied", true},
		{"auth error without body", &AuthenticationError{StatusCode: 403}, 403, BodyNotAvailable, true},
		{"wrapped api error", fmt.Errorf("export: %w", &APIError{Op: "fetch", StatusCode: 502, Body: "bad gateway"}), 502, "bad gateway", true},
		{"transport error", &TransportError{Op: "login", URL: "https://x", Err: errors.New("refused")}, 0, BodyNotAvailable, false},
		{"plain error", errors.New("boom"), 0, BodyNotAvailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body, ok := ResponseBody(tt.err)
			if status != tt.wantStatus || body != tt.wantBody || ok != tt.wantOK {
				t.Errorf("ResponseBody() = (%d, %q, %v), expected (%d, %q, %v)",
					status, body, ok, tt.wantStatus, tt.wantBody, tt.wantOK)
			}
		})
	}
}
