package apiclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-biteui-client/apiclient"
	"github.com/jrsteele09/go-biteui-client/session"
	"github.com/jrsteele09/go-biteui-client/session/memstore"
)

const (
	staleAccess  = "access-stale"
	validRefresh = "refresh-0"
)

// backend accepts one access token at a time and rotates both tokens on
// every successful refresh.
type backend struct {
	srv *httptest.Server

	mu      sync.Mutex
	access  string
	refresh string
	minted  int
	hits    map[string]int

	rejectAll      atomic.Bool
	refreshCalls   atomic.Int32
	unauthorized   atomic.Int32
	refreshStarted chan struct{}
	refreshGate    chan struct{}
}

func newBackend(t *testing.T, gate chan struct{}) *backend {
	t.Helper()
	b := &backend{
		access:         "access-0",
		refresh:        validRefresh,
		hits:           map[string]int{},
		refreshStarted: make(chan struct{}, 1),
		refreshGate:    gate,
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == apiclient.PathRefresh {
		b.serveRefresh(w, r)
		return
	}

	b.mu.Lock()
	ok := r.Header.Get("Authorization") == "Bearer "+b.access && !b.rejectAll.Load()
	if ok {
		b.hits[r.URL.Path]++
	}
	b.mu.Unlock()

	if !ok {
		b.unauthorized.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": map[string]string{"path": r.URL.Path}})
}

func (b *backend) serveRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	select {
	case b.refreshStarted <- struct{}{}:
	default:
	}
	if b.refreshGate != nil {
		<-b.refreshGate
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Header.Get("Authorization") != "" || body.RefreshToken != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh token expired"})
		return
	}
	b.minted++
	b.access = fmt.Sprintf("access-%d", b.minted)
	b.refresh = fmt.Sprintf("refresh-%d", b.minted)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "refreshed",
		"data":    map[string]string{"access_token": b.access, "refresh_token": b.refresh},
	})
}

func (b *backend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "revoked"
}

func (b *backend) expireRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = "revoked"
}

func (b *backend) hitCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

type testFixture struct {
	backend *backend
	manager *session.Manager
	client  *apiclient.Client
	metrics *apiclient.Metrics
	cleared atomic.Int32
}

func setupTestFixture(t *testing.T, tokens session.Tokens, gate chan struct{}, opts ...apiclient.Option) *testFixture {
	t.Helper()
	f := &testFixture{backend: newBackend(t, gate), metrics: apiclient.NewMetrics()}
	f.manager = session.NewManager(memstore.NewWithTokens(tokens), session.WithSink(session.SinkFuncs{
		Cleared: func(context.Context, session.Reason) { f.cleared.Add(1) },
	}))
	require.NoError(t, f.metrics.RegisterCollectors(prometheus.NewRegistry()))

	client, err := apiclient.New(f.backend.srv.URL+"/", f.manager, append([]apiclient.Option{apiclient.WithMetrics(f.metrics)}, opts...)...)
	require.NoError(t, err)
	f.client = client
	return f
}

func getAuth(ctx context.Context, c *apiclient.Client, path string) (*apiclient.Envelope[map[string]string], error) {
	return apiclient.Get[map[string]string](ctx, c, path, apiclient.WithAuth())
}

func TestExecute_SingleFlightRefresh(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, gate)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := getAuth(ctx, f.client, apiclient.PathProfile)
			if err == nil && env.Data["path"] != apiclient.PathProfile {
				err = fmt.Errorf("unexpected payload %v", env.Data)
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return f.backend.unauthorized.Load() == callers
	}, 5*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.Equal(t, callers, f.backend.hitCount(apiclient.PathProfile))

	tokens, err := f.manager.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, tokens)
	require.EqualValues(t, 0, f.cleared.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Refreshes.WithLabelValues("success")))
}

func TestExecute_ConcurrentProfileAndPermissions(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, gate)

	var wg sync.WaitGroup
	results := make(map[string]error)
	var mu sync.Mutex
	for _, path := range []string{apiclient.PathProfile, apiclient.PathPermissions} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, err := getAuth(ctx, f.client, path)
			mu.Lock()
			results[path] = err
			mu.Unlock()
		}(path)
	}

	<-f.backend.refreshStarted
	require.Eventually(t, func() bool {
		return f.backend.unauthorized.Load() == 2
	}, 5*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, results[apiclient.PathProfile])
	require.NoError(t, results[apiclient.PathPermissions])
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.Equal(t, 1, f.backend.hitCount(apiclient.PathProfile))
	require.Equal(t, 1, f.backend.hitCount(apiclient.PathPermissions))
}

func TestExecute_RefreshRejected(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: "refresh-expired"}, nil)

	_, err := getAuth(ctx, f.client, apiclient.PathUsers)
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err))

	apiErr, ok := apiclient.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "token expired", apiErr.Message)
	require.True(t, apiErr.SessionCleared)
	require.ErrorIs(t, apiErr.RefreshErr, apiclient.ErrRefreshFailed)

	refreshErr, ok := apiclient.AsAPIError(apiErr.RefreshErr)
	require.True(t, ok)
	require.Equal(t, "refresh token expired", refreshErr.Message)

	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.False(t, f.manager.Active(ctx))
	require.EqualValues(t, 1, f.cleared.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SessionsClosed.WithLabelValues(string(session.ReasonRefreshFailed))))
}

func TestExecute_RetriesAtMostOnce(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, nil)
	f.backend.rejectAll.Store(true)

	_, err := getAuth(ctx, f.client, apiclient.PathProfile)
	require.True(t, apiclient.IsUnauthorized(err))

	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.EqualValues(t, 2, f.backend.unauthorized.Load())
	require.False(t, f.manager.Active(ctx))
	apiErr, _ := apiclient.AsAPIError(err)
	require.True(t, apiErr.SessionCleared)
	require.NoError(t, apiErr.RefreshErr)
}

func TestExecute_NoRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess}, nil)

	_, err := getAuth(ctx, f.client, apiclient.PathProfile)
	require.True(t, apiclient.IsUnauthorized(err))
	apiErr, _ := apiclient.AsAPIError(err)
	require.ErrorIs(t, apiErr.RefreshErr, apiclient.ErrNoRefreshToken)

	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	require.False(t, f.manager.Active(ctx))
	require.EqualValues(t, 1, f.cleared.Load())
}

func TestExecute_RefreshSlotReleased(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, nil)

	_, err := getAuth(ctx, f.client, apiclient.PathProfile)
	require.NoError(t, err)
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())

	f.backend.expireAccess()
	_, err = getAuth(ctx, f.client, apiclient.PathProfile)
	require.NoError(t, err)
	require.EqualValues(t, 2, f.backend.refreshCalls.Load())

	t.Run("after failure", func(t *testing.T) {
		f.backend.expireAccess()
		f.backend.expireRefresh()
		_, err := getAuth(ctx, f.client, apiclient.PathProfile)
		require.True(t, apiclient.IsUnauthorized(err))
		require.EqualValues(t, 3, f.backend.refreshCalls.Load())

		f.backend.mu.Lock()
		f.backend.refresh = "refresh-again"
		f.backend.mu.Unlock()
		require.NoError(t, f.manager.Establish(ctx, session.Tokens{AccessToken: staleAccess, RefreshToken: "refresh-again"}))

		_, err = getAuth(ctx, f.client, apiclient.PathProfile)
		require.NoError(t, err)
		require.EqualValues(t, 4, f.backend.refreshCalls.Load())
	})
}

func TestExecute_ConcurrentFailuresClearOnce(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := getAuth(ctx, f.client, apiclient.PathProfile)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.True(t, apiclient.IsUnauthorized(err))
	}

	tokens, err := f.manager.Tokens(ctx)
	require.NoError(t, err)
	require.True(t, tokens.Empty())
	require.GreaterOrEqual(t, f.cleared.Load(), int32(1))
}

func TestExecute_SkipAuthRefresh(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, nil)

	_, err := apiclient.Post[any](ctx, f.client, apiclient.PathLogout, nil, apiclient.WithAuth(), apiclient.WithSkipAuthRefresh())
	require.True(t, apiclient.IsUnauthorized(err))
	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	require.False(t, f.manager.Active(ctx))
}

func TestExecute_UnauthenticatedCallKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, nil)

	_, err := apiclient.Get[any](ctx, f.client, apiclient.PathProfile)
	require.True(t, apiclient.IsUnauthorized(err))
	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	require.True(t, f.manager.Active(ctx))
	require.EqualValues(t, 0, f.cleared.Load())
}

func TestExecute_TransportError(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, nil)
	f.backend.srv.Close()

	_, err := getAuth(ctx, f.client, apiclient.PathProfile)
	var transportErr *apiclient.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.MethodGet, transportErr.Method)
	require.False(t, apiclient.IsUnauthorized(err))
	require.True(t, f.manager.Active(ctx))
	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Requests.WithLabelValues(http.MethodGet, "transport_error")))
}

func TestExecute_CancelledWaiterKeepsSession(t *testing.T) {
	gate := make(chan struct{})
	f := setupTestFixture(t, session.Tokens{AccessToken: staleAccess, RefreshToken: validRefresh}, gate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := getAuth(ctx, f.client, apiclient.PathProfile)
		done <- err
	}()

	<-f.backend.refreshStarted
	cancel()
	err := <-done
	var transportErr *apiclient.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, f.manager.Active(context.Background()))

	close(gate)
	require.Eventually(t, func() bool {
		access, _ := f.manager.AccessToken(context.Background())
		return access == "access-1"
	}, 5*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 0, f.cleared.Load())
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates tokens", func(t *testing.T) {
		f := setupTestFixture(t, session.Tokens{AccessToken: "access-0", RefreshToken: validRefresh}, nil)
		tokens, err := f.client.Refresh(ctx)
		require.NoError(t, err)
		require.Equal(t, session.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, tokens)
	})

	t.Run("does not clear on failure", func(t *testing.T) {
		f := setupTestFixture(t, session.Tokens{AccessToken: "access-0", RefreshToken: "refresh-bad"}, nil)
		_, err := f.client.Refresh(ctx)
		require.ErrorIs(t, err, apiclient.ErrRefreshFailed)
		require.True(t, f.manager.Active(ctx))
	})

	t.Run("no refresh token", func(t *testing.T) {
		f := setupTestFixture(t, session.Tokens{}, nil)
		_, err := f.client.Refresh(ctx)
		require.ErrorIs(t, err, apiclient.ErrNoRefreshToken)
		require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	})
}

// scriptedAPI accepts only the bearer "valid" and answers the refresh path
// with a fixed body.
type scriptedAPI struct {
	srv          *httptest.Server
	refreshBody  map[string]any
	onRejected   func()
	refreshCalls atomic.Int32
}

func newScriptedAPI(t *testing.T, refreshBody map[string]any) *scriptedAPI {
	t.Helper()
	a := &scriptedAPI{refreshBody: refreshBody}
	a.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiclient.PathRefresh {
			a.refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, a.refreshBody)
			return
		}
		if r.Header.Get("Authorization") != "Bearer valid" {
			if a.onRejected != nil {
				a.onRejected()
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": map[string]string{"path": r.URL.Path}})
	}))
	t.Cleanup(a.srv.Close)
	return a
}

func TestExecute_LateUnauthorizedReusesNewerToken(t *testing.T) {
	ctx := context.Background()
	api := newScriptedAPI(t, map[string]any{"data": map[string]string{"access_token": "unused"}})
	manager := session.NewManager(memstore.NewWithTokens(session.Tokens{AccessToken: "old", RefreshToken: "r1"}))
	metrics := apiclient.NewMetrics()
	client, err := apiclient.New(api.srv.URL, manager, apiclient.WithMetrics(metrics))
	require.NoError(t, err)

	// Another caller finishes its refresh while this request is in flight.
	api.onRejected = func() {
		_ = manager.Establish(context.Background(), session.Tokens{AccessToken: "valid", RefreshToken: "r2"})
	}

	env, err := getAuth(ctx, client, apiclient.PathProfile)
	require.NoError(t, err)
	require.Equal(t, apiclient.PathProfile, env.Data["path"])
	require.Zero(t, api.refreshCalls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Refreshes.WithLabelValues("already_refreshed")))

	tokens, err := manager.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Tokens{AccessToken: "valid", RefreshToken: "r2"}, tokens)
}

func TestExecute_RefreshWithoutAccessTokenFails(t *testing.T) {
	ctx := context.Background()
	api := newScriptedAPI(t, map[string]any{"data": map[string]string{"access_token": ""}})
	var reasons []session.Reason
	manager := session.NewManager(memstore.NewWithTokens(session.Tokens{AccessToken: "old", RefreshToken: "r1"}),
		session.WithSink(session.SinkFuncs{
			Cleared: func(_ context.Context, r session.Reason) { reasons = append(reasons, r) },
		}))
	client, err := apiclient.New(api.srv.URL, manager)
	require.NoError(t, err)

	_, err = getAuth(ctx, client, apiclient.PathProfile)
	apiErr, ok := apiclient.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.True(t, apiErr.SessionCleared)
	require.ErrorIs(t, apiErr.RefreshErr, apiclient.ErrRefreshFailed)
	require.ErrorContains(t, apiErr.RefreshErr, "no access token")

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.False(t, manager.Active(ctx))
	require.Equal(t, []session.Reason{session.ReasonRefreshFailed}, reasons)
}

func TestExecute_RefreshKeepsStoredRefreshToken(t *testing.T) {
	ctx := context.Background()
	api := newScriptedAPI(t, map[string]any{"data": map[string]string{"access_token": "valid"}})
	manager := session.NewManager(memstore.NewWithTokens(session.Tokens{AccessToken: "old", RefreshToken: "r-keep"}))
	client, err := apiclient.New(api.srv.URL, manager)
	require.NoError(t, err)

	_, err = getAuth(ctx, client, apiclient.PathProfile)
	require.NoError(t, err)
	require.EqualValues(t, 1, api.refreshCalls.Load())

	tokens, err := manager.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Tokens{AccessToken: "valid", RefreshToken: "r-keep"}, tokens)
}

func TestExecute_Headers(t *testing.T) {
	ctx := context.Background()
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := session.NewManager(memstore.NewWithTokens(session.Tokens{AccessToken: "a1"}))
	c, err := apiclient.New(srv.URL, m, apiclient.WithUserAgent("biteui-test"))
	require.NoError(t, err)

	env, err := apiclient.Post[any](ctx, c, "users", map[string]string{"email": "a@b.c"}, apiclient.WithAuth())
	require.NoError(t, err)
	require.Nil(t, env.Data)
	got := <-headers
	require.Equal(t, "Bearer a1", got.Get("Authorization"))
	require.Equal(t, "application/json", got.Get("Accept"))
	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.Equal(t, "biteui-test", got.Get("User-Agent"))
	require.NotEmpty(t, got.Get(apiclient.HeaderRequestID))

	_, err = apiclient.Get[any](ctx, c, "users", apiclient.WithHeader("Authorization", "Bearer override"), apiclient.WithAuth())
	require.NoError(t, err)
	got = <-headers
	require.Equal(t, "Bearer override", got.Get("Authorization"))
	require.Empty(t, got.Get("Content-Type"))

	_, err = apiclient.Get[any](ctx, c, "users")
	require.NoError(t, err)
	got = <-headers
	require.Empty(t, got.Get("Authorization"))
}

func TestExecute_ErrorMessages(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        string
	}{
		{"structured message", 422, "application/json", `{"message":"email taken","error":{"email":"exists"}}`, "email taken"},
		{"structured blank message", 400, "application/json", `{"message":"  "}`, "Bad Request"},
		{"json string", 409, "application/json", `"conflict here"`, "conflict here"},
		{"text", 500, "text/plain", "database down", "database down"},
		{"blank text", 503, "text/plain", "   ", "Service Unavailable"},
		{"invalid json", 400, "application/json", `{oops`, "Bad Request"},
		{"unknown status", 599, "", "", "Request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := apiclient.New(srv.URL, session.NewManager(memstore.New()))
			require.NoError(t, err)
			_, err = apiclient.Get[any](ctx, c, "/x")
			apiErr, ok := apiclient.AsAPIError(err)
			require.True(t, ok)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestDo_Envelope(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"ok","data":[1,2],"meta":{"page":2,"size":2,"total":9}}`))
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("pong"))
		case "/broken":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":"not-a-list"}`))
		}
	}))
	defer srv.Close()
	c, err := apiclient.New(srv.URL, session.NewManager(memstore.New()))
	require.NoError(t, err)

	list, err := apiclient.Get[[]int](ctx, c, "/list")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, list.Data)
	require.Equal(t, &apiclient.Meta{Page: 2, Size: 2, Total: 9}, list.Meta)

	text, err := apiclient.Get[any](ctx, c, "/text")
	require.NoError(t, err)
	require.Equal(t, "pong", text.Message)

	_, err = apiclient.Get[[]int](ctx, c, "/broken")
	var decodeErr *apiclient.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestExecute_RateLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL, session.NewManager(memstore.New()), apiclient.WithRateLimit(0.1, 1))
	require.NoError(t, err)

	_, err = apiclient.Get[any](ctx, c, "/a")
	require.NoError(t, err)
	_, err = apiclient.Get[any](ctx, c, "/b")
	var transportErr *apiclient.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, session.Tokens{RefreshToken: validRefresh}, nil)

	tok, err := f.client.TokenSource(ctx).Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())

	tok, err = f.client.TokenSource(ctx).Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
}

func TestNew(t *testing.T) {
	m := session.NewManager(memstore.New())

	_, err := apiclient.New("not a url", m)
	require.Error(t, err)

	_, err = apiclient.New("https://api.biteui.test", nil)
	require.ErrorContains(t, err, "session manager is required")

	c, err := apiclient.New("https://api.biteui.test", m)
	require.NoError(t, err)
	require.Same(t, m, c.Session())
}

func TestIsJSONContentTypes(t *testing.T) {
	ctx := context.Background()
	for _, ct := range []string{"application/json", "application/json; charset=utf-8", "application/problem+json", "Application/JSON"} {
		t.Run(strings.ReplaceAll(ct, "/", "_"), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", ct)
				_, _ = w.Write([]byte(`{"message":"hi","data":1}`))
			}))
			defer srv.Close()
			c, err := apiclient.New(srv.URL, session.NewManager(memstore.New()))
			require.NoError(t, err)

			env, err := apiclient.Get[int](ctx, c, "/")
			require.NoError(t, err)
			require.Equal(t, 1, env.Data)
			require.Equal(t, "hi", env.Message)
		})
	}
}
