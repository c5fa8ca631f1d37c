package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/platforms/facebook"
	"github.com/darmiel/linkgate/internal/store"
)

// fakeGraph mimics the Graph endpoints used for WhatsApp tokens.
type fakeGraph struct {
	mu         sync.Mutex
	expiresAt  time.Time
	renewCalls int
}

func (g *fakeGraph) setExpiresAt(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expiresAt = t
}

func (g *fakeGraph) renewals() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renewCalls
}

func (g *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v23.0/oauth/access_token":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["code"] != "CODE1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid verification code format.","type":"OAuthException","code":100}}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"ABC","token_type":"bearer","expires_in":5184000}`))
	case r.Method == http.MethodGet && r.URL.Path == "/debug_token":
		_, _ = w.Write([]byte(`{"data":{"app_id":"app","type":"USER","is_valid":true,"expires_at":` +
			strconv.FormatInt(g.expiresAt.Unix(), 10) +
			`,"granular_scopes":[{"scope":"whatsapp_business_management","target_ids":["waba-7"]}]}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v23.0/me/accounts":
		_, _ = w.Write([]byte(`{"data":[{"id":"page-9","name":"Shop","access_token":"PAGE9"}]}`))
	case r.Method == http.MethodGet && r.URL.Path == "/oauth/access_token":
		g.renewCalls++
		_, _ = w.Write([]byte(`{"access_token":"XYZ","token_type":"bearer","expires_in":5184000}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestLifecycle_WhatsAppEndToEnd(t *testing.T) {
	graph := &fakeGraph{}
	srv := httptest.NewServer(graph)
	t.Cleanup(srv.Close)

	fb, err := facebook.New(facebook.Config{
		AppID:        "app",
		AppSecret:    "secret",
		GraphBaseURL: srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	coord := NewCoordinator(store.NewInMemoryTokenStore(10), map[core.Platform]core.Exchanger{
		core.PlatformWhatsApp: fb,
	})
	ctx := context.Background()

	rec, err := coord.ExchangeCode(ctx, ExchangeRequest{
		Platform:     core.PlatformWhatsApp,
		CodeExchange: core.CodeExchange{Code: "CODE1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC", rec.Token)
	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, rec.IssuedAt.Add(5184000*time.Second), *rec.ExpiresAt)

	page, err := coord.GetToken(ctx, core.SourcePageToken)
	require.NoError(t, err)
	assert.Equal(t, "PAGE9", page.Token)
	assert.Equal(t, "page-9", page.OwnerID)
	assert.Equal(t, core.KindNonExpiring, page.Kind)
	assert.Nil(t, page.ExpiresAt)

	graph.setExpiresAt(time.Now().Add(30 * 24 * time.Hour))
	res, err := coord.AutoRenewIfNeeded(ctx, "ABC", 86400*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ActionNoRefreshNeeded, res.Action)
	assert.Equal(t, 0, graph.renewals())

	graph.setExpiresAt(time.Now().Add(12 * time.Hour))
	res, err = coord.AutoRenewIfNeeded(ctx, "ABC", 86400*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ActionRefreshed, res.Action)
	assert.Equal(t, "ABC", res.OldToken)
	assert.Equal(t, "XYZ", res.NewToken)
	assert.Equal(t, 1, graph.renewals())
	assert.Equal(t, "waba-7", res.Record.OwnerID)

	current, err := coord.GetToken(ctx, core.SourceWhatsAppOAuth)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", current.Token)
}

func TestLifecycle_ExpiredCode(t *testing.T) {
	srv := httptest.NewServer(&fakeGraph{})
	t.Cleanup(srv.Close)

	fb, err := facebook.New(facebook.Config{AppID: "app", AppSecret: "secret", GraphBaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	coord := NewCoordinator(store.NewInMemoryTokenStore(10), map[core.Platform]core.Exchanger{core.PlatformWhatsApp: fb})

	_, err = coord.ExchangeCode(context.Background(), ExchangeRequest{
		Platform:     core.PlatformWhatsApp,
		CodeExchange: core.CodeExchange{Code: "STALE"},
	})
	var exErr *core.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, http.StatusBadRequest, exErr.HTTPStatus)
	assert.Contains(t, exErr.UpstreamBody, "Invalid verification code format")
}
