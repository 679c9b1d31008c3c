package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearclaim/internal/claims"
	"clearclaim/pkg/domain"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// brokenBackend fails every call. Used to verify degradation.
type brokenBackend struct{ err error }

func (b *brokenBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b *brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b *brokenBackend) DeletePrefix(context.Context, string) error { return b.err }

func newTestCache(backend Backend) *Cache {
	return New(backend, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestWrap_MissComputesAndStores(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCache(backend)

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{Name: "claims", Count: 7}, nil
	}

	first, err := Wrap(ctx, c, "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 7, first.Count)
	assert.Equal(t, 1, computes)
	assert.Equal(t, 1, backend.Len())

	second, err := Wrap(ctx, c, "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, computes)
}

func TestWrap_ExpiredEntryRecomputes(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCache(backend)

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{Count: computes}, nil
	}

	_, err := Wrap(ctx, c, "k1", -time.Second, compute)
	require.NoError(t, err)

	value, err := Wrap(ctx, c, "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, value.Count)
	assert.Equal(t, 2, computes)
}

func TestWrap_ComputeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCache(backend)

	wantErr := errors.New("store unavailable")
	_, err := Wrap(ctx, c, "k1", time.Minute, func(context.Context) (payload, error) {
		return payload{}, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Zero(t, backend.Len())
}

func TestWrap_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCache(backend)
	require.NoError(t, backend.Set(ctx, "k1", []byte("{not json"), time.Minute))

	value, err := Wrap(ctx, c, "k1", time.Minute, func(context.Context) (payload, error) {
		return payload{Count: 42}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value.Count)

	// The bad entry was overwritten with the computed value.
	data, found, err := backend.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"","count":42}`, string(data))
}

// TestWrap_DegradesWhenBackendFails: a dead backend must never take reads down
// with it.
func TestWrap_DegradesWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(&brokenBackend{err: errors.New("connection refused")})

	computes := 0
	for i := 0; i < 3; i++ {
		value, err := Wrap(ctx, c, "k1", time.Minute, func(context.Context) (payload, error) {
			computes++
			return payload{Count: computes}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, value.Count)
	}
	assert.Equal(t, 3, computes)
}

func TestInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCache(backend)

	userA := domain.UserID(uuid.New())
	userB := domain.UserID(uuid.New())
	keyA := ListKey(userA, claims.ListFilter{}, claims.Page{})
	keyB := ListKey(userB, claims.ListFilter{}, claims.Page{})
	require.NoError(t, backend.Set(ctx, keyA, []byte(`{}`), time.Minute))
	require.NoError(t, backend.Set(ctx, keyB, []byte(`{}`), time.Minute))

	require.NoError(t, c.InvalidatePrefix(ctx, PrincipalPrefix(userA)))

	_, found, err := backend.Get(ctx, keyA)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = backend.Get(ctx, keyB)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestListKey(t *testing.T) {
	userID := domain.UserID(uuid.New())
	patientID := domain.PatientID(uuid.New())

	t.Run("deterministic", func(t *testing.T) {
		filter := claims.ListFilter{PatientID: patientID, Status: claims.StatusPending, Search: "therapy"}
		page := claims.Page{Number: 2, Size: 10}
		assert.Equal(t, ListKey(userID, filter, page), ListKey(userID, filter, page))
	})

	t.Run("page defaults are normalized into the key", func(t *testing.T) {
		assert.Equal(t,
			ListKey(userID, claims.ListFilter{}, claims.Page{}),
			ListKey(userID, claims.ListFilter{}, claims.Page{Number: 1, Size: 20}),
		)
	})

	t.Run("distinct queries get distinct keys", func(t *testing.T) {
		base := ListKey(userID, claims.ListFilter{}, claims.Page{})
		assert.NotEqual(t, base, ListKey(userID, claims.ListFilter{Status: claims.StatusPaid}, claims.Page{}))
		assert.NotEqual(t, base, ListKey(userID, claims.ListFilter{}, claims.Page{Number: 2}))
		assert.NotEqual(t, base, ListKey(domain.UserID(uuid.New()), claims.ListFilter{}, claims.Page{}))
	})

	t.Run("principal prefix covers the key", func(t *testing.T) {
		key := ListKey(userID, claims.ListFilter{Search: "x"}, claims.Page{})
		assert.Contains(t, key, PrincipalPrefix(userID))
	})
}
