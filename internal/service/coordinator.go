package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/darmiel/linkgate/internal/api/middleware"
	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/classifier"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/platforms"
	"github.com/darmiel/linkgate/internal/renewal"
)

// Coordinator ties the platform clients, the classifier, the renewal policy
// and the token store together.
type Coordinator struct {
	store     core.TokenStore
	platforms map[core.Platform]core.Exchanger
	auditor   core.Auditor

	strictThreshold time.Duration
	batchThreshold  time.Duration

	now func() time.Time

	// renewals collapses concurrent renewals of the same token into one upstream call
	renewals singleflight.Group
}

type Option func(*Coordinator)

func WithAuditor(a core.Auditor) Option {
	return func(c *Coordinator) {
		if a != nil {
			c.auditor = a
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithThresholds(strict, batch time.Duration) Option {
	return func(c *Coordinator) {
		if strict > 0 {
			c.strictThreshold = strict
		}
		if batch > 0 {
			c.batchThreshold = batch
		}
	}
}

func NewCoordinator(store core.TokenStore, clients map[core.Platform]core.Exchanger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:           store,
		platforms:       clients,
		auditor:         audit.NewNoopAuditor(),
		strictThreshold: renewal.StrictThreshold,
		batchThreshold:  renewal.BatchThreshold,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) StrictThreshold() time.Duration {
	return c.strictThreshold
}

func (c *Coordinator) BatchThreshold() time.Duration {
	return c.batchThreshold
}

// Platforms lists the configured platforms and their capabilities.
func (c *Coordinator) Platforms() []platforms.Capabilities {
	list := make([]platforms.Capabilities, 0, len(c.platforms))
	for _, ex := range c.platforms {
		list = append(list, platforms.CapabilitiesOf(ex))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Platform < list[j].Platform
	})
	return list
}

func (c *Coordinator) exchanger(platform core.Platform) (core.Exchanger, error) {
	ex, ok := c.platforms[platform]
	if !ok {
		return nil, &core.UnknownPlatformError{Platform: string(platform)}
	}
	return ex, nil
}

func (c *Coordinator) newAuditEntry(ctx context.Context, action string) core.AuditEntry {
	return core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   c.now(),
		Action: action,
	}
}

func (c *Coordinator) logAudit(ctx context.Context, entry *core.AuditEntry, err error) {
	if err != nil {
		entry.Success = false
		entry.Error = err.Error()
	} else {
		entry.Success = true
	}
	if logErr := c.auditor.Log(*entry); logErr != nil {
		log.Ctx(ctx).Error().Err(logErr).Str("action", entry.Action).Msg("failed to write audit log entry")
	}
}

// ExchangeCode performs the code-for-token exchange, classifies the result and
// stores it under the platform's canonical source.
func (c *Coordinator) ExchangeCode(ctx context.Context, req ExchangeRequest) (rec *core.TokenRecord, err error) {
	logger := log.Ctx(ctx).With().Str("platform", string(req.Platform)).Logger()

	auditEntry := c.newAuditEntry(ctx, core.ActionTokenExchange)
	auditEntry.Platform = req.Platform
	auditEntry.Source = req.Platform.Source()
	defer func() {
		c.logAudit(ctx, &auditEntry, err)
	}()

	ex, err := c.exchanger(req.Platform)
	if err != nil {
		return nil, err
	}

	logger.Debug().Msg("exchanging authorization code")
	res, err := ex.ExchangeCode(ctx, req.CodeExchange)
	if err != nil {
		logger.Warn().Err(err).Msg("authorization code exchange failed")
		return nil, err
	}

	rec, err = classifier.FromExchange(res, req.Platform.Source(), req.OwnerID, c.now())
	if err != nil {
		return nil, fmt.Errorf("classifying %s token: %w", req.Platform, err)
	}
	if err = c.store.Save(ctx, *rec); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	auditEntry.OwnerID = rec.OwnerID
	auditEntry.TokenFingerprint = audit.Fingerprint(rec.Token)
	auditEntry.Metadata = map[string]any{"kind": rec.Kind}

	logger.Info().
		Str("source", string(rec.Source)).
		Str("owner_id", rec.OwnerID).
		Str("kind", string(rec.Kind)).
		Int("token_length", len(rec.Token)).
		Msg("token exchanged and stored")

	if fetcher, ok := ex.(core.PageTokenFetcher); ok {
		if page := c.capturePageToken(ctx, fetcher, rec); page != nil {
			auditEntry.Metadata["page_id"] = page.OwnerID
		}
	}
	return rec, nil
}

// capturePageToken stores the page token derived from user under
// SourcePageToken. Failures are logged and never fail the exchange.
func (c *Coordinator) capturePageToken(ctx context.Context, fetcher core.PageTokenFetcher, user *core.TokenRecord) *core.TokenRecord {
	logger := log.Ctx(ctx).With().Str("platform", string(user.Platform)).Logger()

	res, err := fetcher.PageToken(ctx, user.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch page token")
		return nil
	}
	if res == nil {
		logger.Debug().Msg("user manages no page")
		return nil
	}
	// page tokens never carry an expiry
	res.ExpiresInSeconds = nil

	page, err := classifier.FromExchange(res, core.SourcePageToken, "", c.now())
	if err != nil {
		logger.Warn().Err(err).Msg("could not classify page token")
		return nil
	}
	if err := c.store.Save(ctx, *page); err != nil {
		logger.Warn().Err(err).Msg("could not store page token")
		return nil
	}
	logger.Info().
		Str("source", string(page.Source)).
		Str("owner_id", page.OwnerID).
		Int("token_length", len(page.Token)).
		Msg("page token stored")
	return page
}

// target is what is known about a token before calling its platform.
type target struct {
	token    string
	platform core.Platform
	source   core.Source
	record   *core.TokenRecord // nil if the token is not in the store
}

// resolve looks up where a token came from. Unknown tokens are treated as
// WhatsApp tokens unless platform names another one.
func (c *Coordinator) resolve(ctx context.Context, token string, platform core.Platform) (*target, error) {
	if token == "" {
		return nil, &core.InvalidTokenError{Reason: "token is empty"}
	}
	t := &target{token: token, platform: platform}

	rec, err := c.store.FindByToken(ctx, token)
	var nf *core.NotFoundError
	switch {
	case err == nil:
		t.record = rec
		t.source = rec.Source
		if t.platform == "" {
			t.platform = rec.Platform
		}
	case errors.As(err, &nf):
	default:
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	if t.platform == "" {
		t.platform = core.PlatformWhatsApp
	}
	if t.source == "" {
		t.source = t.platform.Source()
	}
	return t, nil
}

func (c *Coordinator) introspect(ctx context.Context, t *target) (*core.Introspection, error) {
	ex, err := c.exchanger(t.platform)
	if err != nil {
		return nil, err
	}
	in, ok := ex.(core.Introspector)
	if !ok {
		return nil, &core.UnsupportedOperationError{Platform: t.platform, Operation: "introspect"}
	}
	result, err := in.Introspect(ctx, t.token)
	if err != nil {
		return nil, err
	}

	// platforms without expiry information in their probe (Instagram) fall
	// back to what was recorded at exchange time
	if result.ExpiresAt == nil && t.record != nil && t.record.ExpiresAt != nil {
		exp := *t.record.ExpiresAt
		result.ExpiresAt = &exp
	}
	if result.OwnerID == "" && t.record != nil {
		result.OwnerID = t.record.OwnerID
	}
	result.SecondsUntilExpiry = core.SecondsUntil(result.ExpiresAt, c.now())
	if result.Scopes == nil {
		result.Scopes = []string{}
	}
	return result, nil
}

// InspectToken asks the issuing platform about a token. An invalid token is
// reported with IsValid=false, not as an error.
func (c *Coordinator) InspectToken(ctx context.Context, token string, platform core.Platform) (result *core.Introspection, err error) {
	auditEntry := c.newAuditEntry(ctx, core.ActionTokenInspect)
	auditEntry.TokenFingerprint = audit.Fingerprint(token)
	defer func() {
		c.logAudit(ctx, &auditEntry, err)
	}()

	t, err := c.resolve(ctx, token, platform)
	if err != nil {
		return nil, err
	}
	auditEntry.Platform = t.platform
	auditEntry.Source = t.source

	result, err = c.introspect(ctx, t)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("platform", string(t.platform)).Msg("token introspection failed")
		return nil, err
	}
	auditEntry.OwnerID = result.OwnerID
	auditEntry.Metadata = map[string]any{"is_valid": result.IsValid}
	return result, nil
}

// RenewToken inspects the token and, if it is still valid, trades it for a
// fresh one stored under the same source.
func (c *Coordinator) RenewToken(ctx context.Context, token string) (result *RenewalResult, err error) {
	auditEntry := c.newAuditEntry(ctx, core.ActionTokenRenew)
	auditEntry.TokenFingerprint = audit.Fingerprint(token)
	defer func() {
		c.logAudit(ctx, &auditEntry, err)
	}()

	t, err := c.resolve(ctx, token, "")
	if err != nil {
		return nil, err
	}
	auditEntry.Platform = t.platform
	auditEntry.Source = t.source

	renewer, err := c.renewer(t.platform)
	if err != nil {
		return nil, err
	}

	in, err := c.introspect(ctx, t)
	if err != nil {
		return nil, err
	}
	if !in.IsValid {
		return nil, &core.TokenNotRenewableError{
			Platform: t.platform,
			Reason:   "token is invalid or expired, the OAuth flow has to be restarted",
		}
	}

	result, err = c.renew(ctx, renewer, t, in)
	if err != nil {
		return nil, err
	}
	auditEntry.OwnerID = result.Record.OwnerID
	auditEntry.Metadata = map[string]any{"new_token_fingerprint": audit.Fingerprint(result.Record.Token)}
	return result, nil
}

func (c *Coordinator) renewer(platform core.Platform) (core.Renewer, error) {
	ex, err := c.exchanger(platform)
	if err != nil {
		return nil, err
	}
	r, ok := ex.(core.Renewer)
	if !ok {
		return nil, &core.UnsupportedOperationError{Platform: platform, Operation: "renew"}
	}
	return r, nil
}

// renew runs the token-for-token exchange for an already inspected token.
func (c *Coordinator) renew(ctx context.Context, renewer core.Renewer, t *target, in *core.Introspection) (*RenewalResult, error) {
	key := string(t.source) + "|" + audit.Fingerprint(t.token)

	v, err, shared := c.renewals.Do(key, func() (any, error) {
		// the renewal outlives an impatient caller, the new token must not get lost
		ctx := context.WithoutCancel(ctx)

		res, err := renewer.RenewToken(ctx, t.token)
		if err != nil {
			return nil, err
		}
		owner := in.OwnerID
		if owner == "" && t.record != nil {
			owner = t.record.OwnerID
		}
		rec, err := classifier.FromExchange(res, t.source, owner, c.now())
		if err != nil {
			return nil, fmt.Errorf("classifying renewed token: %w", err)
		}
		if err := c.store.Save(ctx, *rec); err != nil {
			return nil, fmt.Errorf("storing renewed token: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("platform", string(t.platform)).Msg("token renewal failed")
		return nil, err
	}
	rec := v.(*core.TokenRecord)

	oldExpiresAt := in.ExpiresAt
	if oldExpiresAt == nil && t.record != nil {
		oldExpiresAt = t.record.ExpiresAt
	}
	result := &RenewalResult{
		OldExpiresAt: oldExpiresAt,
		NewExpiresAt: rec.ExpiresAt,
		Record:       rec,
	}
	if oldExpiresAt != nil && rec.ExpiresAt != nil {
		ext := int64(rec.ExpiresAt.Sub(*oldExpiresAt) / time.Second)
		result.ExtensionSeconds = &ext
	}

	log.Ctx(ctx).Info().
		Str("platform", string(t.platform)).
		Str("source", string(t.source)).
		Bool("shared", shared).
		Int("token_length", len(rec.Token)).
		Msg("token renewed")
	return result, nil
}

// AutoRenewIfNeeded renews the token if less than threshold of its lifetime remains.
// A threshold <= 0 selects the strict threshold.
func (c *Coordinator) AutoRenewIfNeeded(ctx context.Context, token string, threshold time.Duration) (result *AutoRenewResult, err error) {
	if threshold <= 0 {
		threshold = c.strictThreshold
	}

	auditEntry := c.newAuditEntry(ctx, core.ActionTokenAutoRenew)
	auditEntry.TokenFingerprint = audit.Fingerprint(token)
	auditEntry.Metadata = map[string]any{"threshold_seconds": int64(threshold / time.Second)}
	defer func() {
		if result != nil {
			auditEntry.Metadata["action"] = result.Action
		}
		c.logAudit(ctx, &auditEntry, err)
	}()

	t, err := c.resolve(ctx, token, "")
	if err != nil {
		return nil, err
	}
	auditEntry.Platform = t.platform
	auditEntry.Source = t.source

	in, err := c.introspect(ctx, t)
	var unsupported *core.UnsupportedOperationError
	if errors.As(err, &unsupported) && t.record != nil && t.record.ExpiresAt == nil {
		// a stored token without expiry never needs renewal
		in = &core.Introspection{
			Platform: t.platform,
			IsValid:  true,
			OwnerID:  t.record.OwnerID,
			Scopes:   []string{},
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	auditEntry.OwnerID = in.OwnerID

	assessment := renewal.NewPolicy(threshold).Assess(renewal.ProbeFrom(in), c.now())
	if assessment.Terminal {
		return nil, &core.TokenNotRenewableError{
			Platform: t.platform,
			Reason:   "token is invalid or expired, the OAuth flow has to be restarted",
		}
	}

	if !assessment.NeedsRenewal {
		return &AutoRenewResult{
			Action:             ActionNoRefreshNeeded,
			Token:              token,
			ExpiresAt:          in.ExpiresAt,
			SecondsUntilExpiry: assessment.SecondsUntilExpiry,
			Assessment:         assessment,
			Record:             t.record,
		}, nil
	}

	renewer, err := c.renewer(t.platform)
	if err != nil {
		return nil, err
	}
	renewed, err := c.renew(ctx, renewer, t, in)
	if err != nil {
		return nil, err
	}
	return &AutoRenewResult{
		Action:           ActionRefreshed,
		OldToken:         token,
		NewToken:         renewed.Record.Token,
		ExpiresAt:        renewed.NewExpiresAt,
		ExtensionSeconds: renewed.ExtensionSeconds,
		Assessment:       assessment,
		Record:           renewed.Record,
	}, nil
}

// ListTokens returns a snapshot of the store, most recent first.
func (c *Coordinator) ListTokens(ctx context.Context) ([]core.TokenRecord, error) {
	return c.store.List(ctx)
}

// GetToken returns the current token of a source or a NotFoundError.
func (c *Coordinator) GetToken(ctx context.Context, source core.Source) (*core.TokenRecord, error) {
	return c.store.Get(ctx, source)
}

// AuthorizeURL returns the URL that starts the OAuth flow of a platform.
func (c *Coordinator) AuthorizeURL(platform core.Platform, state string) (string, error) {
	ex, err := c.exchanger(platform)
	if err != nil {
		return "", err
	}
	a, ok := ex.(core.Authorizer)
	if !ok {
		return "", &core.UnsupportedOperationError{Platform: platform, Operation: "authorize"}
	}
	return a.AuthorizeURL(state)
}

// CallbackRedirectURI returns the redirect_uri the authorize dialog of platform
// sends users back to, or "" if it has none.
func (c *Coordinator) CallbackRedirectURI(platform core.Platform) string {
	ex, err := c.exchanger(platform)
	if err != nil {
		return ""
	}
	if a, ok := ex.(core.Authorizer); ok {
		return a.CallbackRedirectURI()
	}
	return ""
}

// Now returns the coordinator's notion of the current time.
func (c *Coordinator) Now() time.Time {
	return c.now()
}
