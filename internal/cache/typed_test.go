package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "threat-cache/internal/common/errors"
)

type analysis struct {
	Score   int      `json:"score"`
	Signals []string `json:"signals"`
}

func TestAs(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		got, err := As[int](7)
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})

	t.Run("raw json", func(t *testing.T) {
		got, err := As[analysis](json.RawMessage(`{"score":3,"signals":["tor"]}`))
		require.NoError(t, err)
		assert.Equal(t, analysis{Score: 3, Signals: []string{"tor"}}, got)
	})

	t.Run("converted through json", func(t *testing.T) {
		got, err := As[analysis](map[string]any{"score": 9})
		require.NoError(t, err)
		assert.Equal(t, 9, got.Score)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := As[analysis](nil)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSerialization))
	})

	t.Run("incompatible", func(t *testing.T) {
		_, err := As[int](json.RawMessage(`"text"`))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSerialization))
	})
}

func TestTypedGetAfterPromotion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	want := analysis{Score: 5, Signals: []string{"spam", "bot"}}
	m.Set(ctx, "threat:analysis:abc", want, Options{Tiers: []Tier{TierShared}})

	got, ok := Get[analysis](ctx, m, "threat:analysis:abc")
	require.True(t, ok)
	assert.Equal(t, want, got)

	// The promoted local copy is raw JSON and still decodes.
	got, ok = Get[analysis](ctx, m, "threat:analysis:abc")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = Get[analysis](ctx, m, "threat:analysis:missing")
	assert.False(t, ok)
}

func TestTypedGetWrongShape(t *testing.T) {
	m := newLocalOnlyManager(t)
	ctx := context.Background()

	m.Set(ctx, "k", "not a number", Options{MemoryTTL: time.Minute})

	_, ok := Get[int](ctx, m, "k")
	assert.False(t, ok)
}

func TestTypedGetOrSet(t *testing.T) {
	m := newLocalOnlyManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (analysis, error) {
		calls++
		return analysis{Score: 1}, nil
	}

	got, err := GetOrSet(ctx, m, "k", fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Score)

	got, err = GetOrSet(ctx, m, "k", fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Score)
	assert.Equal(t, 1, calls)

	fetchErr := errors.New("down")
	_, err = GetOrSet(ctx, m, "other", func(ctx context.Context) (analysis, error) {
		return analysis{}, fetchErr
	}, Options{})
	assert.ErrorIs(t, err, fetchErr)
}
