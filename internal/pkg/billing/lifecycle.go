package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/entitlements"
)

// Billing period to coverage window. The gateway reports period as free
// text, so the mapping substring-matches and defaults to monthly.
const (
	monthlyCoverage = 30 * 24 * time.Hour
	yearlyCoverage  = 360 * 24 * time.Hour
)

// handleSubscriptionAuthenticated moves a subscription to Active, links the
// user's entitlement and retires any superseded subscription of the same
// user. Re-delivery on an already-active row only touches the timestamp.
func (s *Service) handleSubscriptionAuthenticated(ctx context.Context, ev *Event, subscriptionID string) error {
	if subscriptionID == "" {
		s.log.Warn().Str("event_type", ev.Type).Msg("authenticated event carries no subscription id")
		return nil
	}

	sub, err := s.repo.FindSubscriptionByRemoteID(subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("subscription_id", subscriptionID).Msg("subscription not found locally, ignoring event")
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	// Out-of-order guard: a cancellation observed first wins.
	if sub.IsTerminal() {
		s.log.Info().
			Str("subscription_id", subscriptionID).
			Str("status", sub.Status).
			Msg("subscription already terminal, authenticated event is a no-op")
		return nil
	}

	if sub.Status == models.SubscriptionStatusActive && sub.IsActive {
		sub.UpdatedDate = now
		if err := s.repo.SaveSubscription(sub); err != nil {
			return err
		}
		s.log.Info().Str("subscription_id", subscriptionID).Msg("subscription already active, updated timestamp")
		return nil
	}

	sub.Status = models.SubscriptionStatusActive
	sub.IsActive = true
	sub.UpdatedDate = now

	start := ev.CurrentStart()
	if start == nil {
		start = &now
	}
	sub.StartDate = start

	end := ev.CurrentEnd()
	if end == nil {
		e := now.Add(s.coverageForPlan(sub.RazorpayPlanID))
		end = &e
	}
	sub.EndDate = end
	sub.NextBillingDate = end

	if err := s.repo.SaveSubscription(sub); err != nil {
		return err
	}
	s.log.Info().
		Str("subscription_id", subscriptionID).
		Uint("user_id", sub.UserID).
		Msg("subscription activated")

	if err := s.linkUserPlan(sub); err != nil {
		return err
	}
	s.updateBillingInfo(sub)
	s.cancelSupersededSubscriptions(ctx, sub)
	return nil
}

// handleSubscriptionCancelled records a history snapshot, marks the row
// Cancelled and downgrades the user to Free unless another subscription
// still entitles them (an upgrade superseded this one).
func (s *Service) handleSubscriptionCancelled(ctx context.Context, ev *Event, subscriptionID string) error {
	_ = ctx
	if subscriptionID == "" {
		s.log.Warn().Str("event_type", ev.Type).Msg("cancelled event carries no subscription id")
		return nil
	}

	sub, err := s.repo.FindSubscriptionByRemoteID(subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("subscription_id", subscriptionID).Msg("subscription not found locally, ignoring event")
		return nil
	}
	if err != nil {
		return err
	}

	if sub.Status == models.SubscriptionStatusCancelled {
		s.log.Info().Str("subscription_id", subscriptionID).Msg("subscription already cancelled")
		return nil
	}

	// The gateway's end date is authoritative when supplied.
	if end := ev.CurrentEnd(); end != nil {
		sub.EndDate = end
	}

	// Snapshot before mutating.
	history := models.NewSubscriptionHistory(sub, models.CancelReasonWebhook)
	if err := s.repo.CreateSubscriptionHistory(history); err != nil {
		s.log.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("failed to create subscription history")
	}

	sub.Status = models.SubscriptionStatusCancelled
	sub.IsActive = false
	sub.UpdatedDate = time.Now().UTC()
	if err := s.repo.SaveSubscription(sub); err != nil {
		return err
	}
	s.log.Info().
		Str("subscription_id", subscriptionID).
		Uint("user_id", sub.UserID).
		Msg("subscription cancelled")

	others, err := s.repo.ListOtherEntitledSubscriptions(sub.UserID, sub.ID)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		s.log.Info().
			Uint("user_id", sub.UserID).
			Str("other_subscription_id", others[0].RazorpaySubscriptionID).
			Msg("user has another entitling subscription, skipping downgrade")
		return nil
	}

	return s.downgradeUserToFree(sub.UserID)
}

// handlePaymentFailed marks the subscription Failed without touching the
// user's entitlement: a failed renewal charge does not strip access that was
// already granted, the renewal simply did not extend it.
func (s *Service) handlePaymentFailed(ctx context.Context, ev *Event, subscriptionID string) error {
	_ = ctx
	if subscriptionID == "" {
		s.log.Warn().Str("event_type", ev.Type).Msg("payment failed event carries no subscription id")
		return nil
	}

	sub, err := s.repo.FindSubscriptionByRemoteID(subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("subscription_id", subscriptionID).Msg("subscription not found locally, ignoring event")
		return nil
	}
	if err != nil {
		return err
	}

	if sub.IsTerminal() {
		s.log.Info().
			Str("subscription_id", subscriptionID).
			Str("status", sub.Status).
			Msg("subscription already terminal, payment failed event is a no-op")
		return nil
	}

	sub.Status = models.SubscriptionStatusFailed
	sub.IsActive = false
	sub.UpdatedDate = time.Now().UTC()
	if err := s.repo.SaveSubscription(sub); err != nil {
		return err
	}
	s.log.Info().
		Str("subscription_id", subscriptionID).
		Uint("user_id", sub.UserID).
		Msg("subscription marked failed, user plan unchanged")
	return nil
}

// linkUserPlan resolves the remote plan mirror to an internal Plan and
// applies the entitlement. Both plan change and renewal reset the usage
// counters: a renewal grants a fresh quota period. Resolution misses are
// logged and absorbed since no retry will help.
func (s *Service) linkUserPlan(sub *models.Subscription) error {
	remotePlan, err := s.repo.FindRemotePlanByRemoteID(sub.RazorpayPlanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("razorpay_plan_id", sub.RazorpayPlanID).Msg("remote plan mirror not found, skipping plan link")
		return nil
	}
	if err != nil {
		return err
	}

	user, err := s.repo.GetUser(sub.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Uint("user_id", sub.UserID).Msg("subscription owner not found, skipping plan link")
		return nil
	}
	if err != nil {
		return err
	}

	plans, err := s.repo.ListPlans()
	if err != nil {
		return err
	}
	internal := entitlements.ResolvePlan(plans, remotePlan.PlanName)
	if internal == nil {
		s.log.Warn().
			Str("remote_plan_name", remotePlan.PlanName).
			Msg("no internal plan matches remote plan name, skipping plan link")
		return nil
	}

	if user.PlanID != internal.ID {
		user.PlanID = internal.ID
		user.ClearCustomLimits()
		user.ResetUsageCounters()
		s.log.Info().
			Uint("user_id", user.ID).
			Str("plan", internal.Name).
			Msg("user linked to new plan, usage counters reset")
	} else {
		user.ClearCustomLimits()
		user.ResetUsageCounters()
		s.log.Info().
			Uint("user_id", user.ID).
			Str("plan", internal.Name).
			Msg("user renewed plan, usage counters reset")
	}

	if err := s.repo.SaveUser(user); err != nil {
		return err
	}
	s.cachePlan(user.ID, internal.Name)
	return nil
}

// downgradeUserToFree drops the user to the free entitlement with the free
// tier's caps already consumed as the usage baseline.
func (s *Service) downgradeUserToFree(userID uint) error {
	user, err := s.repo.GetUser(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Uint("user_id", userID).Msg("user not found for downgrade")
		return nil
	}
	if err != nil {
		return err
	}

	freePlan, err := s.repo.FindPlanByName(models.PlanNameFree)
	if err != nil {
		return err
	}

	user.PlanID = freePlan.ID
	user.ClearCustomLimits()
	// Counters are set to the free caps, not zero: a cancelled payer does
	// not get a fresh free quota on top of what they already consumed.
	user.UsageLinks = capOrZero(freePlan.MaxLinks)
	user.UsageQRs = capOrZero(freePlan.MaxQRs)
	user.UsageCustomLinks = capOrZero(freePlan.MaxCustomLinks)
	user.UsageQRWithLogo = capOrZero(freePlan.MaxQRWithLogo)
	user.UsageEditableLinks = capOrZero(freePlan.MaxEditableLinks)

	if err := s.repo.SaveUser(user); err != nil {
		return err
	}
	s.cachePlan(user.ID, freePlan.Name)
	s.log.Info().Uint("user_id", user.ID).Msg("user downgraded to free plan")
	return nil
}

// cancelSupersededSubscriptions retires every other entitling subscription
// of the same user once the new one is confirmed. The remote cancel is
// immediate (this is an upgrade); a remote failure is logged for manual
// reconciliation but never blocks the local cancellation, so the user never
// holds two active local subscriptions.
func (s *Service) cancelSupersededSubscriptions(ctx context.Context, current *models.Subscription) {
	others, err := s.repo.ListOtherEntitledSubscriptions(current.UserID, current.ID)
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", current.UserID).Msg("failed to list superseded subscriptions")
		return
	}

	for i := range others {
		old := &others[i]
		if s.gateway != nil && old.RazorpaySubscriptionID != "" {
			if err := s.gateway.CancelSubscription(ctx, old.RazorpaySubscriptionID, false); err != nil {
				s.log.Warn().
					Err(err).
					Str("subscription_id", old.RazorpaySubscriptionID).
					Msg("remote cancellation failed, cancelling locally anyway")
			}
		}

		history := models.NewSubscriptionHistory(old, models.CancelReasonUpgrade)
		if err := s.repo.CreateSubscriptionHistory(history); err != nil {
			s.log.Warn().Err(err).Str("subscription_id", old.RazorpaySubscriptionID).Msg("failed to create subscription history")
		}

		old.Status = models.SubscriptionStatusCancelled
		old.IsActive = false
		old.UpdatedDate = time.Now().UTC()
		if err := s.repo.SaveSubscription(old); err != nil {
			s.log.Error().Err(err).Str("subscription_id", old.RazorpaySubscriptionID).Msg("failed to cancel superseded subscription locally")
			continue
		}
		s.log.Info().
			Str("subscription_id", old.RazorpaySubscriptionID).
			Uint("user_id", old.UserID).
			Msg("superseded subscription cancelled")
	}
}

// updateBillingInfo stamps the activated gateway identifiers on the user's
// latest billing record. Best effort.
func (s *Service) updateBillingInfo(sub *models.Subscription) {
	info, err := s.repo.LatestBillingInfo(sub.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", sub.UserID).Msg("failed to load billing info")
		return
	}
	info.RazorpayPlanID = sub.RazorpayPlanID
	info.RazorpaySubscriptionID = sub.RazorpaySubscriptionID
	if err := s.repo.SaveBillingInfo(info); err != nil {
		s.log.Warn().Err(err).Uint("user_id", sub.UserID).Msg("failed to update billing info")
	}
}

// coverageForPlan derives the fallback coverage window from the remote
// plan's billing period when the payload carries no end date.
func (s *Service) coverageForPlan(remotePlanID string) time.Duration {
	if remotePlanID == "" {
		return monthlyCoverage
	}
	plan, err := s.repo.FindRemotePlanByRemoteID(remotePlanID)
	if err != nil {
		return monthlyCoverage
	}
	period := strings.ToLower(plan.Period)
	switch {
	case strings.Contains(period, "yearly"):
		return yearlyCoverage
	case strings.Contains(period, "monthly"):
		return monthlyCoverage
	default:
		return monthlyCoverage
	}
}

func (s *Service) cachePlan(userID uint, planName string) {
	if s.planCache == nil {
		return
	}
	if err := s.planCache.SetUserPlan(userID, planName); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("failed to update plan cache")
	}
}

func capOrZero(limit int) int {
	if limit == models.UnlimitedQuota {
		return 0
	}
	return limit
}
