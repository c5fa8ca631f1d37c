package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/renewal"
	"github.com/darmiel/linkgate/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakePlatform implements Exchanger and Introspector.
type fakePlatform struct {
	platform core.Platform

	mu            sync.Mutex
	exchange      func(req core.CodeExchange) (*core.ExchangeResult, error)
	introspection map[string]*core.Introspection
	introspectErr error
}

func (f *fakePlatform) Platform() core.Platform {
	return f.platform
}

func (f *fakePlatform) ExchangeCode(_ context.Context, req core.CodeExchange) (*core.ExchangeResult, error) {
	return f.exchange(req)
}

func (f *fakePlatform) Introspect(_ context.Context, token string) (*core.Introspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.introspectErr != nil {
		return nil, f.introspectErr
	}
	in, ok := f.introspection[token]
	if !ok {
		return &core.Introspection{Platform: f.platform}, nil
	}
	cpy := *in
	return &cpy, nil
}

func (f *fakePlatform) setIntrospection(token string, in *core.Introspection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.introspection == nil {
		f.introspection = map[string]*core.Introspection{}
	}
	f.introspection[token] = in
}

// fakeExchangeOnly implements nothing but Exchanger.
type fakeExchangeOnly struct {
	platform core.Platform
	exchange func(req core.CodeExchange) (*core.ExchangeResult, error)
}

func (f *fakeExchangeOnly) Platform() core.Platform {
	return f.platform
}

func (f *fakeExchangeOnly) ExchangeCode(_ context.Context, req core.CodeExchange) (*core.ExchangeResult, error) {
	return f.exchange(req)
}

// fakeRenewingPlatform additionally implements Renewer.
type fakeRenewingPlatform struct {
	*fakePlatform

	renewMu    sync.Mutex
	renew      func(current string) (*core.ExchangeResult, error)
	renewCalls int
}

func (f *fakeRenewingPlatform) RenewToken(_ context.Context, current string) (*core.ExchangeResult, error) {
	f.renewMu.Lock()
	f.renewCalls++
	f.renewMu.Unlock()
	return f.renew(current)
}

func (f *fakeRenewingPlatform) calls() int {
	f.renewMu.Lock()
	defer f.renewMu.Unlock()
	return f.renewCalls
}

func secs(v int64) *int64 { return &v }

func at(t time.Time) *time.Time { return &t }

type fixture struct {
	clock     *fakeClock
	store     *store.InMemoryTokenStore
	auditor   *audit.InMemoryAuditor
	whatsapp  *fakeRenewingPlatform
	instagram *fakePlatform
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:   &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		store:   store.NewInMemoryTokenStore(10),
		auditor: audit.NewInMemoryAuditor(),
	}
	f.whatsapp = &fakeRenewingPlatform{
		fakePlatform: &fakePlatform{
			platform: core.PlatformWhatsApp,
			exchange: func(req core.CodeExchange) (*core.ExchangeResult, error) {
				return &core.ExchangeResult{
					Platform:         core.PlatformWhatsApp,
					AccessToken:      "T-" + req.Code,
					ExpiresInSeconds: secs(3600),
				}, nil
			},
		},
		renew: func(current string) (*core.ExchangeResult, error) {
			return &core.ExchangeResult{
				Platform:         core.PlatformWhatsApp,
				AccessToken:      current + "-renewed",
				ExpiresInSeconds: secs(5184000),
			}, nil
		},
	}
	f.instagram = &fakePlatform{
		platform: core.PlatformInstagram,
		exchange: func(req core.CodeExchange) (*core.ExchangeResult, error) {
			return &core.ExchangeResult{
				Platform:         core.PlatformInstagram,
				AccessToken:      "IG-" + req.Code,
				ExpiresInSeconds: secs(5184000),
				OwnerID:          "ig-user",
			}, nil
		},
	}

	f.coord = NewCoordinator(f.store, map[core.Platform]core.Exchanger{
		core.PlatformWhatsApp:  f.whatsapp,
		core.PlatformInstagram: f.instagram,
	}, WithClock(f.clock.Now), WithAuditor(f.auditor))
	return f
}

func TestExchangeCode_StoresRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{
		Platform:     core.PlatformWhatsApp,
		CodeExchange: core.CodeExchange{Code: "CODE1", OwnerID: "waba-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "T-CODE1", rec.Token)
	assert.Equal(t, core.SourceWhatsAppOAuth, rec.Source)
	assert.Equal(t, "waba-1", rec.OwnerID)
	assert.Equal(t, core.KindShortLived, rec.Kind)
	require.NotNil(t, rec.ExpiresAt)
	assert.WithinDuration(t, f.clock.Now().Add(3600*time.Second), *rec.ExpiresAt, time.Second)

	got, err := f.coord.GetToken(ctx, core.SourceWhatsAppOAuth)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	entries, err := f.auditor.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.ActionTokenExchange, entries[0].Action)
	assert.True(t, entries[0].Success)
	assert.Equal(t, audit.Fingerprint("T-CODE1"), entries[0].TokenFingerprint)
}

// fakePagePlatform additionally implements PageTokenFetcher.
type fakePagePlatform struct {
	*fakeRenewingPlatform
	page func(userToken string) (*core.ExchangeResult, error)
}

func (f *fakePagePlatform) PageToken(_ context.Context, userToken string) (*core.ExchangeResult, error) {
	return f.page(userToken)
}

func (f *fixture) withPages(page func(userToken string) (*core.ExchangeResult, error)) {
	f.coord.platforms[core.PlatformWhatsApp] = &fakePagePlatform{fakeRenewingPlatform: f.whatsapp, page: page}
}

func TestExchangeCode_CapturesPageToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withPages(func(userToken string) (*core.ExchangeResult, error) {
		assert.Equal(t, "T-CODE1", userToken)
		return &core.ExchangeResult{
			Platform:         core.PlatformWhatsApp,
			AccessToken:      "PAGE-1",
			OwnerID:          "page-1",
			ExpiresInSeconds: secs(60),
		}, nil
	})

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{
		Platform:     core.PlatformWhatsApp,
		CodeExchange: core.CodeExchange{Code: "CODE1", OwnerID: "waba-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.SourceWhatsAppOAuth, rec.Source)

	list, err := f.coord.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	page, err := f.coord.GetToken(ctx, core.SourcePageToken)
	require.NoError(t, err)
	assert.Equal(t, "PAGE-1", page.Token)
	assert.Equal(t, "page-1", page.OwnerID)
	assert.Equal(t, core.KindNonExpiring, page.Kind)
	assert.Nil(t, page.ExpiresAt)

	entries, err := f.auditor.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "page-1", entries[0].Metadata["page_id"])
}

func TestExchangeCode_PageTokenFailureKeepsExchange(t *testing.T) {
	tests := []struct {
		name string
		page func(string) (*core.ExchangeResult, error)
	}{
		{"upstream error", func(string) (*core.ExchangeResult, error) {
			return nil, &core.ExchangeError{Platform: core.PlatformWhatsApp, HTTPStatus: 403}
		}},
		{"no page", func(string) (*core.ExchangeResult, error) {
			return nil, nil
		}},
		{"empty page token", func(string) (*core.ExchangeResult, error) {
			return &core.ExchangeResult{Platform: core.PlatformWhatsApp, OwnerID: "page-1"}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.withPages(tt.page)

			_, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "A"}})
			require.NoError(t, err)

			list, err := f.coord.ListTokens(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, core.SourceWhatsAppOAuth, list[0].Source)

			entries, err := f.auditor.GetRecent(10)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.True(t, entries[0].Success)
		})
	}
}

func TestExchangeCode_ReplacesPerSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "A"}})
	require.NoError(t, err)
	_, err = f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "B"}})
	require.NoError(t, err)

	list, err := f.coord.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T-B", list[0].Token)
}

func TestExchangeCode_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformTiendaNube, CodeExchange: core.CodeExchange{Code: "A"}})
	var unknown *core.UnknownPlatformError
	assert.True(t, errors.As(err, &unknown))

	upstreamErr := &core.ExchangeError{Platform: core.PlatformWhatsApp, HTTPStatus: 400, UpstreamBody: `{"error":{}}`}
	f.whatsapp.exchange = func(core.CodeExchange) (*core.ExchangeResult, error) {
		return nil, upstreamErr
	}
	_, err = f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "A"}})
	var exErr *core.ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, 400, exErr.HTTPStatus)

	f.whatsapp.exchange = func(core.CodeExchange) (*core.ExchangeResult, error) {
		return &core.ExchangeResult{Platform: core.PlatformWhatsApp}, nil
	}
	_, err = f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "A"}})
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	list, err := f.coord.ListTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "failed exchanges must not store anything")

	entries, err := f.auditor.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.False(t, e.Success)
		assert.NotEmpty(t, e.Error)
	}
}

func TestInspectToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformInstagram, CodeExchange: core.CodeExchange{Code: "C"}})
	require.NoError(t, err)

	// the instagram probe knows nothing about expiry
	f.instagram.setIntrospection(rec.Token, &core.Introspection{Platform: core.PlatformInstagram, IsValid: true})
	f.clock.Advance(24 * time.Hour)

	in, err := f.coord.InspectToken(ctx, rec.Token, "")
	require.NoError(t, err)
	assert.True(t, in.IsValid)
	assert.Equal(t, "ig-user", in.OwnerID)
	require.NotNil(t, in.ExpiresAt)
	assert.Equal(t, *rec.ExpiresAt, *in.ExpiresAt)
	require.NotNil(t, in.SecondsUntilExpiry)
	assert.Equal(t, int64(5184000-86400), *in.SecondsUntilExpiry)
	assert.NotNil(t, in.Scopes)

	// invalid is a result, not an error
	in, err = f.coord.InspectToken(ctx, "unknown", core.PlatformWhatsApp)
	require.NoError(t, err)
	assert.False(t, in.IsValid)

	f.whatsapp.introspectErr = &core.IntrospectionError{Platform: core.PlatformWhatsApp, HTTPStatus: 500}
	_, err = f.coord.InspectToken(ctx, "unknown", "")
	var inErr *core.IntrospectionError
	assert.True(t, errors.As(err, &inErr))

	_, err = f.coord.InspectToken(ctx, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRenewToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformWhatsApp, CodeExchange: core.CodeExchange{Code: "A", OwnerID: "waba-1"}})
	require.NoError(t, err)
	f.whatsapp.setIntrospection(rec.Token, &core.Introspection{
		Platform:  core.PlatformWhatsApp,
		IsValid:   true,
		ExpiresAt: rec.ExpiresAt,
	})

	res, err := f.coord.RenewToken(ctx, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, f.whatsapp.calls())

	assert.Equal(t, "T-A-renewed", res.Record.Token)
	assert.Equal(t, core.SourceWhatsAppOAuth, res.Record.Source)
	assert.Equal(t, "waba-1", res.Record.OwnerID)
	assert.Equal(t, core.KindLongLived, res.Record.Kind)
	require.NotNil(t, res.ExtensionSeconds)
	assert.Equal(t, int64(5184000-3600), *res.ExtensionSeconds)
	assert.Equal(t, rec.ExpiresAt, res.OldExpiresAt)

	current, err := f.coord.GetToken(ctx, core.SourceWhatsAppOAuth)
	require.NoError(t, err)
	assert.Equal(t, "T-A-renewed", current.Token)
}

func TestRenewToken_InvalidIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.whatsapp.setIntrospection("DEAD", &core.Introspection{Platform: core.PlatformWhatsApp, IsValid: false})

	_, err := f.coord.RenewToken(ctx, "DEAD")
	var notRenewable *core.TokenNotRenewableError
	require.True(t, errors.As(err, &notRenewable))
	assert.Equal(t, 0, f.whatsapp.calls(), "no renewal call for invalid tokens")

	_, err = f.coord.AutoRenewIfNeeded(ctx, "DEAD", renewal.BatchThreshold)
	require.True(t, errors.As(err, &notRenewable))
	assert.Equal(t, 0, f.whatsapp.calls())
}

func TestRenewToken_Unsupported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformInstagram, CodeExchange: core.CodeExchange{Code: "C"}})
	require.NoError(t, err)

	_, err = f.coord.RenewToken(ctx, rec.Token)
	var unsupported *core.UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, core.PlatformInstagram, unsupported.Platform)
	assert.Equal(t, "renew", unsupported.Operation)
}

func TestRenewToken_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.whatsapp.setIntrospection("OK", &core.Introspection{Platform: core.PlatformWhatsApp, IsValid: true})
	f.whatsapp.renew = func(string) (*core.ExchangeResult, error) {
		return nil, &core.ExchangeError{Platform: core.PlatformWhatsApp, HTTPStatus: 400}
	}

	_, err := f.coord.RenewToken(ctx, "OK")
	var exErr *core.ExchangeError
	require.True(t, errors.As(err, &exErr))

	list, err := f.coord.ListTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAutoRenewIfNeeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.whatsapp.setIntrospection("LONG", &core.Introspection{
		Platform:  core.PlatformWhatsApp,
		IsValid:   true,
		ExpiresAt: at(now.Add(2 * time.Hour)),
	})

	// the default strict threshold of one hour is not reached
	res, err := f.coord.AutoRenewIfNeeded(ctx, "LONG", 0)
	require.NoError(t, err)
	assert.Equal(t, ActionNoRefreshNeeded, res.Action)
	assert.Equal(t, "LONG", res.Token)
	assert.Equal(t, int64(7200), *res.SecondsUntilExpiry)
	assert.Equal(t, 0, f.whatsapp.calls())

	// with the batch threshold it is
	res, err = f.coord.AutoRenewIfNeeded(ctx, "LONG", f.coord.BatchThreshold())
	require.NoError(t, err)
	assert.Equal(t, ActionRefreshed, res.Action)
	assert.Equal(t, "LONG", res.OldToken)
	assert.Equal(t, "LONG-renewed", res.NewToken)
	require.NotNil(t, res.ExtensionSeconds)
	assert.Equal(t, int64(5184000-7200), *res.ExtensionSeconds)
	assert.Equal(t, 1, f.whatsapp.calls())
}

func TestAutoRenewIfNeeded_NonExpiring(t *testing.T) {
	f := newFixture(t)
	f.whatsapp.setIntrospection("SYSTEM", &core.Introspection{Platform: core.PlatformWhatsApp, IsValid: true})

	res, err := f.coord.AutoRenewIfNeeded(context.Background(), "SYSTEM", 1000*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ActionNoRefreshNeeded, res.Action)
	assert.Nil(t, res.ExpiresAt)
	assert.Equal(t, 0, f.whatsapp.calls())
}

func TestAutoRenewIfNeeded_WithoutIntrospector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var expiresIn *int64
	f.coord.platforms[core.PlatformTiendaNube] = &fakeExchangeOnly{
		platform: core.PlatformTiendaNube,
		exchange: func(req core.CodeExchange) (*core.ExchangeResult, error) {
			return &core.ExchangeResult{
				Platform:         core.PlatformTiendaNube,
				AccessToken:      "TN-" + req.Code,
				OwnerID:          "store-1",
				ExpiresInSeconds: expiresIn,
			}, nil
		},
	}

	rec, err := f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformTiendaNube, CodeExchange: core.CodeExchange{Code: "A"}})
	require.NoError(t, err)
	require.Nil(t, rec.ExpiresAt)

	res, err := f.coord.AutoRenewIfNeeded(ctx, rec.Token, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionNoRefreshNeeded, res.Action)
	assert.Equal(t, rec.Token, res.Token)
	assert.True(t, res.Assessment.IsValid)
	assert.False(t, res.Assessment.NeedsRenewal)
	assert.Nil(t, res.SecondsUntilExpiry)
	assert.Equal(t, rec, res.Record)

	// an expiring token cannot be judged without introspection
	expiresIn = secs(3600)
	rec, err = f.coord.ExchangeCode(ctx, ExchangeRequest{Platform: core.PlatformTiendaNube, CodeExchange: core.CodeExchange{Code: "B"}})
	require.NoError(t, err)
	_, err = f.coord.AutoRenewIfNeeded(ctx, rec.Token, 0)
	var unsupported *core.UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "introspect", unsupported.Operation)
}

func TestRenewToken_ConcurrentCallsShareRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.whatsapp.setIntrospection("SAME", &core.Introspection{Platform: core.PlatformWhatsApp, IsValid: true})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.whatsapp.renew = func(current string) (*core.ExchangeResult, error) {
		close(entered)
		<-release
		return &core.ExchangeResult{Platform: core.PlatformWhatsApp, AccessToken: "NEW", ExpiresInSeconds: secs(60)}, nil
	}

	var wg sync.WaitGroup
	results := make([]*RenewalResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.coord.RenewToken(ctx, "SAME")
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.coord.RenewToken(ctx, "SAME")
	}()
	// let the second caller reach the in-flight renewal
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.whatsapp.calls())
	assert.Equal(t, "NEW", results[0].Record.Token)
	assert.Equal(t, "NEW", results[1].Record.Token)
}

func TestAuthorizeURL_Unsupported(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.AuthorizeURL(core.PlatformWhatsApp, "state")
	var unsupported *core.UnsupportedOperationError
	assert.True(t, errors.As(err, &unsupported))

	_, err = f.coord.AuthorizeURL(core.PlatformTiendaNube, "state")
	var unknown *core.UnknownPlatformError
	assert.True(t, errors.As(err, &unknown))
}

func TestPlatforms(t *testing.T) {
	f := newFixture(t)
	caps := f.coord.Platforms()
	require.Len(t, caps, 2)
	assert.Equal(t, core.PlatformInstagram, caps[0].Platform)
	assert.False(t, caps[0].Renew)
	assert.Equal(t, core.PlatformWhatsApp, caps[1].Platform)
	assert.True(t, caps[1].Renew)
}
