package qr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dptr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func newTestRegistry(t *testing.T, tokens ...*model.QRToken) (*Registry, *repository.MemoryTokenStore) {
	t.Helper()
	store := repository.NewMemoryTokenStore()
	for _, token := range tokens {
		require.NoError(t, store.Insert(context.Background(), token))
	}
	return NewRegistry(store), store
}

// failingStore simulates a storage outage: Get fails with getErr when set,
// ConsumeIfUsable with consumeErr.
type failingStore struct {
	token      *model.QRToken
	getErr     error
	consumeErr error
}

func (s *failingStore) Get(ctx context.Context, tokenID string) (*model.QRToken, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.token, nil
}

func (s *failingStore) ConsumeIfUsable(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	return false, s.consumeErr
}

func fixedToken() *model.QRToken {
	return &model.QRToken{
		ID:          "QR_FIXED001",
		MerchantID:  "MERCH_KHANYA_001",
		Amount:      dptr("150.00"),
		Description: "Grocery bundle",
		UsageLimit:  5,
		Active:      true,
		CreatedAt:   time.Now(),
	}
}

func TestRegistryValidateAndConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("happy: fixed amount token resolves its amount", func(t *testing.T) {
		reg, store := newTestRegistry(t, fixedToken())
		res, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("150.00")))
		assert.Equal(t, "Grocery bundle", res.Description)

		token, err := store.Get(ctx, "QR_FIXED001")
		require.NoError(t, err)
		assert.Equal(t, 1, token.UsageCount)
	})

	t.Run("happy: matching presented amount is accepted", func(t *testing.T) {
		reg, _ := newTestRegistry(t, fixedToken())
		res, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", dptr("150.00"), "MERCH_KHANYA_001")
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("150.00")))
	})

	t.Run("happy: dynamic token takes the presented amount", func(t *testing.T) {
		token := fixedToken()
		token.Amount = nil
		reg, _ := newTestRegistry(t, token)
		res, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", dptr("42.50"), "MERCH_KHANYA_001")
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("42.50")))
	})

	t.Run("bad: unknown token", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		_, err := reg.ValidateAndConsume(ctx, "QR_MISSING", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("bad: merchant mismatch", func(t *testing.T) {
		reg, _ := newTestRegistry(t, fixedToken())
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_OTHER")
		assert.ErrorIs(t, err, ErrMerchantMismatch)
	})

	t.Run("bad: presented amount differs from fixed amount", func(t *testing.T) {
		reg, store := newTestRegistry(t, fixedToken())
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", dptr("99.99"), "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrAmountMismatch)

		// a failed validation must not consume a usage
		token, err := store.Get(ctx, "QR_FIXED001")
		require.NoError(t, err)
		assert.Equal(t, 0, token.UsageCount)
	})

	t.Run("bad: dynamic token without a presented amount", func(t *testing.T) {
		token := fixedToken()
		token.Amount = nil
		reg, _ := newTestRegistry(t, token)
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("bad: expired token", func(t *testing.T) {
		token := fixedToken()
		past := time.Now().Add(-time.Hour)
		token.ExpiresAt = &past
		reg, _ := newTestRegistry(t, token)
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("bad: deactivated token", func(t *testing.T) {
		token := fixedToken()
		token.Active = false
		reg, _ := newTestRegistry(t, token)
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrInactive)
	})

	t.Run("bad: usage limit reached", func(t *testing.T) {
		token := fixedToken()
		token.UsageLimit = 1
		reg, _ := newTestRegistry(t, token)

		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		require.NoError(t, err)

		_, err = reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrUsageExhausted)
	})

	t.Run("bad: store failure on read is not a token rejection", func(t *testing.T) {
		errDown := errors.New("connection refused")
		reg := NewRegistry(&failingStore{getErr: errDown})
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		require.Error(t, err)
		assert.ErrorIs(t, err, errDown, "the cause must stay recoverable")
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("bad: store failure on consume propagates wrapped", func(t *testing.T) {
		errDown := errors.New("connection refused")
		reg := NewRegistry(&failingStore{token: fixedToken(), consumeErr: errDown})
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		require.Error(t, err)
		assert.ErrorIs(t, err, errDown)
		assert.NotErrorIs(t, err, ErrUsageExhausted)
	})

	t.Run("edge: expiry is checked before consuming", func(t *testing.T) {
		token := fixedToken()
		soon := time.Now().Add(50 * time.Millisecond)
		token.ExpiresAt = &soon
		reg, store := newTestRegistry(t, token)

		time.Sleep(60 * time.Millisecond)
		_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
		assert.ErrorIs(t, err, ErrExpired)

		got, err := store.Get(ctx, "QR_FIXED001")
		require.NoError(t, err)
		assert.Equal(t, 0, got.UsageCount)
	})
}

func TestRegistryConsumeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	token := fixedToken()
	token.UsageLimit = 1
	reg, store := newTestRegistry(t, token)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.ValidateAndConsume(ctx, "QR_FIXED001", nil, "MERCH_KHANYA_001")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrUsageExhausted):
			exhausted++
		}
	}
	assert.Equal(t, 1, successes, "exactly one consumption must win")
	assert.Equal(t, attempts-1, exhausted)

	got, err := store.Get(ctx, "QR_FIXED001")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
	assert.False(t, got.Active, "token at its limit is deactivated")
}
