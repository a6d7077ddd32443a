package repository_test

import (
	"context"
	"testing"
	"time"

	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepo_UpsertIsIdempotent(t *testing.T) {
	repo := repository.NewSubscriptionRepository(testutil.NewDB(t))
	ctx := context.Background()
	periodEnd := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)

	first, err := repo.Upsert(ctx, &model.Subscription{
		StripeID:         "sub_1",
		UserID:           "u1",
		Status:           "active",
		PlanType:         model.PlanTypeMonthly,
		CurrentPeriodEnd: periodEnd,
	})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &model.Subscription{
		StripeID:         "sub_1",
		UserID:           "u1",
		Status:           "past_due",
		PlanType:         model.PlanTypeMonthly,
		CurrentPeriodEnd: periodEnd.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "past_due", second.Status)
	assert.True(t, second.CurrentPeriodEnd.Equal(periodEnd.AddDate(0, 1, 0)))

	subs, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestWebhookEventRepo(t *testing.T) {
	repo := repository.NewWebhookEventRepository(testutil.NewDB(t))
	ctx := context.Background()

	seen, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, repo.MarkProcessed(ctx, "evt_1", "checkout.session.completed"))
	require.NoError(t, repo.MarkProcessed(ctx, "evt_1", "checkout.session.completed"))

	seen, err = repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProductAndUserSeed(t *testing.T) {
	db := testutil.NewDB(t)
	products := repository.NewProductRepository(db)
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, products.Seed(ctx))
	require.NoError(t, products.Seed(ctx))
	require.NoError(t, users.Seed(ctx))

	p, err := products.FindByID(ctx, "pro_yearly")
	require.NoError(t, err)
	assert.Equal(t, model.PlanTypeYearly, p.BillingInterval)

	all, err := products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	u, err := users.FindByID(ctx, "demo-user-001")
	require.NoError(t, err)
	assert.Equal(t, "demo@example.com", u.Email)
}
