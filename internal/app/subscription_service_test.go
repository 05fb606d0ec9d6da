package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
	"github.com/refundly/webhooks/pkg/validator"
)

const testKey = "vendor-signing-key-0001"

func newTestSubscriptionService(allowPrivate bool) (*SubscriptionService, *memorySubscriptions) {
	repo := newMemorySubscriptions()
	svc := NewSubscriptionService(repo, SubscriptionServiceConfig{AllowPrivateURLs: allowPrivate}, logger.NewNop())
	return svc, repo
}

func TestSubscriptionService_Add(t *testing.T) {
	svc, _ := newTestSubscriptionService(false)

	sub, err := svc.Add(context.Background(), AddSubscriptionInput{VendorID: 7, URL: "  https://shop.example.com/hooks ", Key: testKey})
	require.NoError(t, err)
	assert.NotZero(t, sub.ID())
	assert.Equal(t, shared.ID(7), sub.VendorID())
	assert.Equal(t, "https://shop.example.com/hooks", sub.URL())
	assert.True(t, sub.Enabled())
}

func TestSubscriptionService_AddDuplicate(t *testing.T) {
	svc, _ := newTestSubscriptionService(false)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://shop.example.com/hooks", Key: testKey})
	require.NoError(t, err)

	_, err = svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://shop.example.com/hooks", Key: testKey})
	assert.ErrorIs(t, err, webhook.ErrSubscriptionExists)
	assert.True(t, shared.IsAlreadyExists(err))

	// Another vendor may register the same url.
	_, err = svc.Add(ctx, AddSubscriptionInput{VendorID: 8, URL: "https://shop.example.com/hooks", Key: testKey})
	assert.NoError(t, err)
}

func TestSubscriptionService_LimitEvictsNewest(t *testing.T) {
	svc, repo := newTestSubscriptionService(false)
	ctx := context.Background()

	first, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	require.NoError(t, err)
	second, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/2", Key: testKey})
	require.NoError(t, err)

	_, err = svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/3", Key: testKey})
	assert.ErrorIs(t, err, webhook.ErrSubscriptionLimitReached)

	subs, err := repo.ListByVendor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, first.ID(), subs[0].ID())
	assert.Equal(t, second.ID(), subs[1].ID())
}

// Two registrations racing for the last free slot: exactly one wins.
func TestSubscriptionService_ConcurrentAddsShareLastSlot(t *testing.T) {
	svc, repo := newTestSubscriptionService(false)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	require.NoError(t, err)

	urls := []string{"https://a.example/2", "https://a.example/3"}
	errs := make([]error, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: u, Key: testKey})
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, webhook.ErrSubscriptionLimitReached):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	subs, err := repo.ListByVendor(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubscriptionService_AddStoreFailure(t *testing.T) {
	svc, repo := newTestSubscriptionService(false)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	require.NoError(t, err)

	// A failed rollback of an over-limit insert surfaces as both errors.
	repo.createErr = errors.Join(webhook.ErrSubscriptionLimitReached, errStore)
	sub, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/2", Key: testKey})
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, errStore)
	assert.ErrorIs(t, err, webhook.ErrSubscriptionLimitReached)

	repo.createErr = errStore
	_, err = svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/3", Key: testKey})
	assert.ErrorIs(t, err, errStore)
	assert.NotErrorIs(t, err, webhook.ErrSubscriptionLimitReached)

	repo.createErr = nil
	subs, err := repo.ListByVendor(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscriptionService_AddValidation(t *testing.T) {
	tests := []struct {
		name         string
		input        AddSubscriptionInput
		allowPrivate bool
		wantErr      bool
	}{
		{"missing url", AddSubscriptionInput{VendorID: 7, Key: testKey}, false, true},
		{"missing key", AddSubscriptionInput{VendorID: 7, URL: "https://a.example"}, false, true},
		{"short key", AddSubscriptionInput{VendorID: 7, URL: "https://a.example", Key: "short"}, false, true},
		{"missing vendor", AddSubscriptionInput{URL: "https://a.example", Key: testKey}, false, true},
		{"ftp scheme", AddSubscriptionInput{VendorID: 7, URL: "ftp://a.example", Key: testKey}, false, true},
		{"localhost", AddSubscriptionInput{VendorID: 7, URL: "http://localhost:8080/hook", Key: testKey}, false, true},
		{"loopback ip", AddSubscriptionInput{VendorID: 7, URL: "http://127.0.0.1/hook", Key: testKey}, false, true},
		{"private ip", AddSubscriptionInput{VendorID: 7, URL: "https://10.1.2.3/hook", Key: testKey}, false, true},
		{"metadata service", AddSubscriptionInput{VendorID: 7, URL: "http://169.254.169.254/latest", Key: testKey}, false, true},
		{"private ip allowed", AddSubscriptionInput{VendorID: 7, URL: "http://127.0.0.1:9000/hook", Key: testKey}, true, false},
		{"public host", AddSubscriptionInput{VendorID: 7, URL: "https://hooks.example.org/refunds", Key: testKey}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestSubscriptionService(tt.allowPrivate)
			_, err := svc.Add(context.Background(), tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs validator.ValidationErrors
			assert.True(t, errors.As(err, &verrs) || shared.IsValidation(err), "unexpected error: %v", err)
		})
	}
}

func TestSubscriptionService_SetEnabled(t *testing.T) {
	svc, _ := newTestSubscriptionService(false)
	ctx := context.Background()
	sub, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	require.NoError(t, err)

	updated, err := svc.SetEnabled(ctx, 7, sub.ID(), false)
	require.NoError(t, err)
	assert.False(t, updated.Enabled())

	updated, err = svc.SetEnabled(ctx, 7, sub.ID(), true)
	require.NoError(t, err)
	assert.True(t, updated.Enabled())

	_, err = svc.SetEnabled(ctx, 8, sub.ID(), false)
	assert.ErrorIs(t, err, webhook.ErrSubscriptionNotFound)

	_, err = svc.SetEnabled(ctx, 7, 999, false)
	assert.ErrorIs(t, err, webhook.ErrSubscriptionNotFound)
}

func TestSubscriptionService_Delete(t *testing.T) {
	svc, repo := newTestSubscriptionService(false)
	ctx := context.Background()
	sub, err := svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 8, sub.ID()), webhook.ErrSubscriptionNotFound)
	require.NoError(t, svc.Delete(ctx, 7, sub.ID()))
	assert.ErrorIs(t, svc.Delete(ctx, 7, sub.ID()), webhook.ErrSubscriptionNotFound)

	subs, err := repo.ListByVendor(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionService_List(t *testing.T) {
	svc, _ := newTestSubscriptionService(false)
	ctx := context.Background()
	_, _ = svc.Add(ctx, AddSubscriptionInput{VendorID: 7, URL: "https://a.example/1", Key: testKey})
	_, _ = svc.Add(ctx, AddSubscriptionInput{VendorID: 8, URL: "https://b.example/1", Key: testKey})

	subs, err := svc.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://a.example/1", subs[0].URL())
}
