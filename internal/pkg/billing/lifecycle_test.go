package billing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

func newTestService(repo *fakeRepo, gw Gateway) *Service {
	return NewService(repo, gw).WithLogger(zerolog.Nop())
}

// seedCatalog installs the default plan catalog with stable IDs and returns
// the free and pro entries.
func seedCatalog(repo *fakeRepo) (free, pro models.Plan) {
	repo.plans = models.DefaultPlans()
	for i := range repo.plans {
		repo.plans[i].ID = uint(i + 1)
	}
	return repo.plans[0], repo.plans[1]
}

func seedUser(repo *fakeRepo, id uint, planID uint) *models.User {
	user := &models.User{
		ID:         id,
		Name:       "Test User",
		Email:      "user@example.com",
		PlanID:     planID,
		UsageLinks: 3,
		UsageQRs:   1,
	}
	repo.users[id] = user
	return user
}

func seedRemotePlan(repo *fakeRepo, remoteID, planName, period string) {
	repo.remotePlans[remoteID] = &models.RazorpaySubscriptionPlan{
		PlanName:       planName,
		RazorpayPlanID: remoteID,
		Period:         period,
		Interval:       1,
		IsActive:       true,
	}
}

func authenticatedEvent(eventID, remoteSubID string, start, end int64) *Event {
	ev := &Event{ID: eventID, Type: EventSubscriptionAuthenticated, CreatedAt: start}
	ev.Payload.Subscription.Entity.ID = remoteSubID
	ev.Payload.Subscription.Entity.Status = "authenticated"
	ev.Payload.Subscription.Entity.CurrentStart = start
	ev.Payload.Subscription.Entity.CurrentEnd = end
	return ev
}

func cancelledEvent(eventID, remoteSubID string, end int64) *Event {
	ev := &Event{ID: eventID, Type: EventSubscriptionCancelled}
	ev.Payload.Subscription.Entity.ID = remoteSubID
	ev.Payload.Subscription.Entity.Status = "cancelled"
	ev.Payload.Subscription.Entity.CurrentEnd = end
	return ev
}

func paymentFailedEvent(eventID, remoteSubID, paymentID string) *Event {
	ev := &Event{ID: eventID, Type: EventPaymentFailed}
	ev.Payload.Payment.Entity.ID = paymentID
	ev.Payload.Payment.Entity.Status = "failed"
	ev.Payload.Payment.Entity.Notes = NotesMap{"subscription_id": remoteSubID}
	return ev
}

func TestProcessEvent_ActivationLinksPlanAndResetsUsage(t *testing.T) {
	repo := newFakeRepo()
	_, pro := seedCatalog(repo)
	user := seedUser(repo, 7, 0)
	seedRemotePlan(repo, "plan_pro", models.PlanNamePro, models.BillingPeriodMonthly)
	sub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_pro",
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusPending,
	})

	cache := newMemoryPlanCache()
	svc := newTestService(repo, &fakeGateway{}).WithPlanCache(cache)

	start := time.Now().UTC().Unix()
	end := time.Now().UTC().Add(30 * 24 * time.Hour).Unix()
	ev := authenticatedEvent("evt_act_1", "sub_100", start, end)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)
	assert.False(t, out.Duplicate)

	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsActive)
	require.NotNil(t, sub.StartDate)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, time.Unix(end, 0).UTC(), *sub.EndDate)
	assert.Equal(t, sub.EndDate, sub.NextBillingDate)

	assert.Equal(t, pro.ID, user.PlanID)
	assert.Zero(t, user.UsageLinks)
	assert.Zero(t, user.UsageQRs)
	assert.Equal(t, models.PlanNamePro, cache.plans[7])

	stored := repo.events["evt_act_1"]
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.Empty(t, stored.ErrorMessage)
}

func TestProcessEvent_ActivationWithoutDatesUsesCoverageWindow(t *testing.T) {
	tests := []struct {
		name   string
		period string
		want   time.Duration
	}{
		{"monthly", models.BillingPeriodMonthly, 30 * 24 * time.Hour},
		{"yearly", models.BillingPeriodYearly, 360 * 24 * time.Hour},
		{"unknown defaults to monthly", "weekly", 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			seedCatalog(repo)
			seedUser(repo, 7, 0)
			seedRemotePlan(repo, "plan_x", models.PlanNamePro, tt.period)
			sub := repo.addSubscription(&models.Subscription{
				UserID:                 7,
				RazorpayPlanID:         "plan_x",
				RazorpaySubscriptionID: "sub_x",
				Status:                 models.SubscriptionStatusPending,
			})

			svc := newTestService(repo, &fakeGateway{})
			ev := authenticatedEvent("evt_x", "sub_x", 0, 0)

			out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
			require.NoError(t, err)
			require.NoError(t, out.HandlerErr)

			require.NotNil(t, sub.StartDate)
			require.NotNil(t, sub.EndDate)
			assert.InDelta(t, float64(tt.want), float64(sub.EndDate.Sub(*sub.StartDate)), float64(time.Minute))
		})
	}
}

func TestProcessEvent_ActivationIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	user := seedUser(repo, 7, 0)
	seedRemotePlan(repo, "plan_pro", models.PlanNamePro, models.BillingPeriodMonthly)
	repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_pro",
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusPending,
	})

	svc := newTestService(repo, &fakeGateway{})
	ev := authenticatedEvent("evt_dup", "sub_100", time.Now().Unix(), time.Now().Add(720*time.Hour).Unix())

	first, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, first.HandlerErr)

	user.UsageLinks = 50 // consumed quota after activation

	second, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// The duplicate must not re-run the handler: no counter reset.
	assert.Equal(t, 50, user.UsageLinks)
	assert.Len(t, repo.events, 1)
}

func TestProcessEvent_UpgradeCancelsSupersededSubscription(t *testing.T) {
	repo := newFakeRepo()
	_, pro := seedCatalog(repo)
	user := seedUser(repo, 7, pro.ID)
	seedRemotePlan(repo, "plan_ent", models.PlanNameEnterprise, models.BillingPeriodMonthly)

	oldSub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_pro",
		RazorpaySubscriptionID: "sub_old",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})
	newSub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_ent",
		RazorpaySubscriptionID: "sub_new",
		Status:                 models.SubscriptionStatusPending,
	})

	gw := &fakeGateway{}
	svc := newTestService(repo, gw)
	ev := authenticatedEvent("evt_up", "sub_new", time.Now().Unix(), time.Now().Add(720*time.Hour).Unix())

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	assert.Equal(t, models.SubscriptionStatusActive, newSub.Status)
	assert.Equal(t, models.SubscriptionStatusCancelled, oldSub.Status)
	assert.False(t, oldSub.IsActive)
	assert.Equal(t, []string{"sub_old"}, gw.cancelled)

	require.Len(t, repo.histories, 1)
	assert.Equal(t, models.CancelReasonUpgrade, repo.histories[0].CancelReason)
	assert.Equal(t, "sub_old", repo.histories[0].SubscriptionID)

	// Single-entitlement invariant: only the new subscription entitles.
	entitled, _ := repo.ListOtherEntitledSubscriptions(7, "")
	require.Len(t, entitled, 1)
	assert.Equal(t, "sub_new", entitled[0].RazorpaySubscriptionID)

	// Enterprise linked.
	assert.Equal(t, repo.plans[2].ID, user.PlanID)
}

func TestProcessEvent_UpgradeRemoteCancelFailureStillCancelsLocally(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	seedUser(repo, 7, 0)
	seedRemotePlan(repo, "plan_ent", models.PlanNameEnterprise, models.BillingPeriodMonthly)

	oldSub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_old",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})
	repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_ent",
		RazorpaySubscriptionID: "sub_new",
		Status:                 models.SubscriptionStatusPending,
	})

	gw := &fakeGateway{cancelErr: assert.AnError}
	svc := newTestService(repo, gw)
	ev := authenticatedEvent("evt_up2", "sub_new", time.Now().Unix(), 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	// Local state wins over the remote failure.
	assert.Equal(t, models.SubscriptionStatusCancelled, oldSub.Status)
	assert.False(t, oldSub.IsActive)
}

func TestProcessEvent_CancellationDowngradesToFree(t *testing.T) {
	repo := newFakeRepo()
	free, pro := seedCatalog(repo)
	user := seedUser(repo, 7, pro.ID)
	sub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_pro",
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})

	cache := newMemoryPlanCache()
	svc := newTestService(repo, &fakeGateway{}).WithPlanCache(cache)
	end := time.Now().Add(24 * time.Hour).Unix()
	ev := cancelledEvent("evt_cancel", "sub_100", end)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.IsActive)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, time.Unix(end, 0).UTC(), *sub.EndDate)

	require.Len(t, repo.histories, 1)
	assert.Equal(t, models.CancelReasonWebhook, repo.histories[0].CancelReason)

	// Downgraded with the free caps pre-consumed, not a fresh free quota.
	assert.Equal(t, free.ID, user.PlanID)
	assert.Equal(t, free.MaxLinks, user.UsageLinks)
	assert.Equal(t, free.MaxQRs, user.UsageQRs)
	assert.Equal(t, free.MaxCustomLinks, user.UsageCustomLinks)
	assert.Equal(t, models.PlanNameFree, cache.plans[7])
}

func TestProcessEvent_CancellationSkipsDowngradeWhenAnotherSubscriptionEntitles(t *testing.T) {
	repo := newFakeRepo()
	_, pro := seedCatalog(repo)
	user := seedUser(repo, 7, pro.ID)
	oldSub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_old",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})
	repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_new",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})

	svc := newTestService(repo, &fakeGateway{})
	ev := cancelledEvent("evt_cancel_old", "sub_old", 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	assert.Equal(t, models.SubscriptionStatusCancelled, oldSub.Status)
	// The surviving subscription keeps the user on the paid plan.
	assert.Equal(t, pro.ID, user.PlanID)
	assert.NotEqual(t, repo.plans[0].ID, user.PlanID)
}

func TestProcessEvent_CancellationIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	seedUser(repo, 7, 0)
	repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusCancelled,
	})

	svc := newTestService(repo, &fakeGateway{})
	ev := cancelledEvent("evt_recancel", "sub_100", 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	// No second history snapshot for an already-cancelled row.
	assert.Empty(t, repo.histories)
}

func TestProcessEvent_HistoryFailureDoesNotBlockCancellation(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	seedUser(repo, 7, 0)
	sub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})
	repo.historyErr = assert.AnError

	svc := newTestService(repo, &fakeGateway{})
	out, err := svc.ProcessEvent(context.Background(), cancelledEvent("evt_h", "sub_100", 0), []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
}

func TestProcessEvent_PaymentFailedKeepsEntitlement(t *testing.T) {
	repo := newFakeRepo()
	_, pro := seedCatalog(repo)
	user := seedUser(repo, 7, pro.ID)
	user.UsageLinks = 12
	sub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusActive,
		IsActive:               true,
	})

	svc := newTestService(repo, &fakeGateway{})
	ev := paymentFailedEvent("evt_fail", "sub_100", "pay_1")

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	assert.Equal(t, models.SubscriptionStatusFailed, sub.Status)
	assert.False(t, sub.IsActive)

	// Access already granted survives a failed renewal charge.
	assert.Equal(t, pro.ID, user.PlanID)
	assert.Equal(t, 12, user.UsageLinks)
	assert.Empty(t, repo.histories)
}

func TestProcessEvent_OutOfOrderAuthenticatedAfterCancellation(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	user := seedUser(repo, 7, 0)
	sub := repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpayPlanID:         "plan_pro",
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusCancelled,
	})
	seedRemotePlan(repo, "plan_pro", models.PlanNamePro, models.BillingPeriodMonthly)

	svc := newTestService(repo, &fakeGateway{})
	ev := authenticatedEvent("evt_late", "sub_100", time.Now().Unix(), 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	// The cancellation observed first wins.
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.IsActive)
	assert.Zero(t, user.PlanID)
}

func TestProcessEvent_UnknownSubscriptionIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)

	svc := newTestService(repo, &fakeGateway{})
	ev := authenticatedEvent("evt_ghost", "sub_unknown", time.Now().Unix(), 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	stored := repo.events["evt_ghost"]
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
}

func TestProcessEvent_UnhandledTypeIsMarkedProcessed(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeGateway{})

	ev := &Event{ID: "evt_charged", Type: EventSubscriptionCharged}
	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.NoError(t, out.HandlerErr)

	stored := repo.events["evt_charged"]
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.Zero(t, repo.saveSubCalls)
}

func TestProcessEvent_StorageFailurePropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.createEventErr = assert.AnError
	svc := newTestService(repo, &fakeGateway{})

	ev := &Event{ID: "evt_store", Type: EventSubscriptionAuthenticated}
	_, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.Error(t, err)
}

func TestProcessEvent_HandlerErrorRecordedOnEventRow(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	seedUser(repo, 7, 0)
	repo.addSubscription(&models.Subscription{
		UserID:                 7,
		RazorpaySubscriptionID: "sub_100",
		Status:                 models.SubscriptionStatusPending,
	})
	repo.saveSubErr = assert.AnError

	svc := newTestService(repo, &fakeGateway{})
	ev := authenticatedEvent("evt_err", "sub_100", time.Now().Unix(), 0)

	out, err := svc.ProcessEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	require.Error(t, out.HandlerErr)

	stored := repo.events["evt_err"]
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestRecordWebhookEvent_BackfillsSubscriptionIDFromPaymentChain(t *testing.T) {
	repo := newFakeRepo()
	repo.events["evt_prior"] = &models.WebhookEvent{
		ID:             "row_prior",
		EventID:        "evt_prior",
		EventType:      EventPaymentAuthorized,
		PaymentID:      "pay_9",
		SubscriptionID: "sub_chained",
	}

	svc := newTestService(repo, &fakeGateway{})
	ev := &Event{ID: "evt_next", Type: EventPaymentCaptured}
	ev.Payload.Payment.Entity.ID = "pay_9"

	created, stored, err := svc.RecordWebhookEvent(context.Background(), ev, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "sub_chained", stored.SubscriptionID)
}
