package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/linkgate/internal/core"
)

type storeFactory func(t *testing.T, capacity int) core.TokenStore

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, capacity int) core.TokenStore {
			return NewInMemoryTokenStore(capacity)
		},
		"redis": func(t *testing.T, capacity int) core.TokenStore {
			mr := miniredis.RunT(t)
			s, err := NewRedisTokenStore(context.Background(), RedisConfig{Addr: mr.Addr()}, capacity)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func record(token string, source core.Source, expiresIn *int64) core.TokenRecord {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := core.TokenRecord{
		Token:    token,
		Source:   source,
		Platform: source.Platform(),
		Kind:     core.KindNonExpiring,
		IssuedAt: issued,
	}
	if expiresIn != nil {
		exp := issued.Add(time.Duration(*expiresIn) * time.Second)
		rec.ExpiresInSeconds = expiresIn
		rec.ExpiresAt = &exp
		rec.Kind = core.KindLongLived
	}
	return rec
}

func TestTokenStore_ReplacePerSource(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, 10)

			require.NoError(t, s.Save(ctx, record("first", core.SourceWhatsAppOAuth, nil)))
			require.NoError(t, s.Save(ctx, record("other", core.SourceTiendaNubeOAuth, nil)))
			require.NoError(t, s.Save(ctx, record("second", core.SourceWhatsAppOAuth, nil)))

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "second", list[0].Token, "most recent first")
			assert.Equal(t, "other", list[1].Token)

			got, err := s.Get(ctx, core.SourceWhatsAppOAuth)
			require.NoError(t, err)
			assert.Equal(t, "second", got.Token)

			_, err = s.FindByToken(ctx, "first")
			var nf *core.NotFoundError
			assert.True(t, errors.As(err, &nf))
		})
	}
}

func TestTokenStore_FIFOEviction(t *testing.T) {
	sources := []core.Source{
		core.SourceWhatsAppOAuth,
		core.SourceInstagramLogin,
		core.SourcePageToken,
		core.SourceTiendaNubeOAuth,
		core.SourceManual,
	}
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, 4)

			// the first record expires last, eviction must ignore that
			far := int64(1_000_000)
			require.NoError(t, s.Save(ctx, record("t0", sources[0], &far)))
			for i := 1; i < len(sources); i++ {
				soon := int64(i)
				require.NoError(t, s.Save(ctx, record(fmt.Sprintf("t%d", i), sources[i], &soon)))
			}

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 4)
			for _, rec := range list {
				assert.NotEqual(t, sources[0], rec.Source)
			}
			assert.Equal(t, "t4", list[0].Token)
			assert.Equal(t, "t1", list[3].Token)

			_, err = s.Get(ctx, sources[0])
			var nf *core.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, sources[0], nf.Source)
		})
	}
}

func TestTokenStore_ReplaceMovesToBack(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, 2)

			require.NoError(t, s.Save(ctx, record("a1", core.SourceWhatsAppOAuth, nil)))
			require.NoError(t, s.Save(ctx, record("b1", core.SourceInstagramLogin, nil)))
			// re-inserting whatsapp makes instagram the oldest
			require.NoError(t, s.Save(ctx, record("a2", core.SourceWhatsAppOAuth, nil)))
			require.NoError(t, s.Save(ctx, record("c1", core.SourceTiendaNubeOAuth, nil)))

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "c1", list[0].Token)
			assert.Equal(t, "a2", list[1].Token)
		})
	}
}

func TestTokenStore_RoundTripsExpiry(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, 10)

			in := int64(5184000)
			rec := record("T", core.SourceWhatsAppOAuth, &in)
			rec.OwnerID = "waba-1"
			rec.Metadata = map[string]any{"token_type": "bearer"}
			require.NoError(t, s.Save(ctx, rec))

			got, err := s.FindByToken(ctx, "T")
			require.NoError(t, err)
			assert.Equal(t, "waba-1", got.OwnerID)
			require.NotNil(t, got.ExpiresAt)
			assert.True(t, rec.ExpiresAt.Equal(*got.ExpiresAt))
			assert.Equal(t, in, *got.ExpiresInSeconds)
			assert.Equal(t, "bearer", got.Metadata["token_type"])
		})
	}
}

func TestTokenStore_EmptyList(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			list, err := newStore(t, 10).List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryTokenStore{}, s)

	_, err = New(context.Background(), Config{Type: "etcd"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Type: TypeRedis})
	assert.Error(t, err)
}
