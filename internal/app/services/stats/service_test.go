package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage/memory"
)

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	yesterday := time.Date(2024, 7, 9, 23, 30, 0, 0, time.UTC)
	today := time.Date(2024, 7, 10, 8, 0, 0, 0, time.UTC)

	now := yesterday
	store.SetClock(func() time.Time { return now })

	_, err := store.CreateUser(ctx, account.User{Name: "A", Mobile: "9000000001"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, account.User{Name: "B", Mobile: "9000000002"})
	require.NoError(t, err)
	_, err = store.CreateService(ctx, catalog.Service{Name: "PAN", DefaultPrice: 100, IsActive: true})
	require.NoError(t, err)

	old, err := store.CreateRequest(ctx, request.ServiceRequest{UserID: "1", ServicePrice: 100, Status: request.StatusPending})
	require.NoError(t, err)
	_, err = store.TransitionRequest(ctx, old.ID, request.StatusPending, request.StatusSuccess, "")
	require.NoError(t, err)
	_, err = store.CreateToken(ctx, llr.Token{Token: "old", UserID: "1", ServicePrice: 300, Status: llr.StatusSubmitted})
	require.NoError(t, err)
	_, err = store.TransitionToken(ctx, "old", llr.Active(), llr.Update{Status: llr.StatusCompleted})
	require.NoError(t, err)

	now = today
	done, err := store.CreateRequest(ctx, request.ServiceRequest{UserID: "1", ServicePrice: 120.5, Status: request.StatusPending})
	require.NoError(t, err)
	_, err = store.TransitionRequest(ctx, done.ID, request.StatusPending, request.StatusSuccess, "")
	require.NoError(t, err)
	_, err = store.CreateRequest(ctx, request.ServiceRequest{UserID: "2", ServicePrice: 80, Status: request.StatusPending})
	require.NoError(t, err)
	_, err = store.CreateToken(ctx, llr.Token{Token: "new", UserID: "2", ServicePrice: 300, Status: llr.StatusSubmitted})
	require.NoError(t, err)

	svc := New(store, store, store, store)
	svc.now = func() time.Time { return today.Add(time.Hour) }

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, Dashboard{
		TodayRequests:   3,
		TodayAmount:     420.5,
		TotalRequests:   5,
		TotalUsers:      2,
		TotalServices:   1,
		PendingRequests: 1,
		SuccessRequests: 3,
	}, d)
}
