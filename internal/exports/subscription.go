package exports

import (
	"context"
	"errors"
	"time"

	"resumegen-backend/internal/shared/config"
	"resumegen-backend/internal/users"
)

// Quota checks use a rolling 30-day window over completed exports, while the
// usage table counts per calendar month. The two deliberately measure
// different things: the window is the enforcement mechanism, the table is
// the reporting one.
const limitWindow = 30 * 24 * time.Hour

// UserReader provides the subscription snapshot for a user.
type UserReader interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
}

// SubscriptionService resolves a user's effective plan and enforces export
// quotas.
type SubscriptionService struct {
	Users UserReader
	Store Store
	Cfg   config.ExportConfig
	Now   func() time.Time
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// GetSubscription returns the user's effective plan and its limits. Unknown
// users, inactive subscriptions and expired subscriptions all silently
// resolve to the free plan.
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (string, Limits, error) {
	plan := PlanFree
	user, err := s.Users.GetByID(ctx, userID)
	switch {
	case err == nil:
		plan = user.SubscriptionPlan
		if plan != PlanFree {
			if !user.SubscriptionActive {
				plan = PlanFree
			} else if user.SubscriptionExpiresAt != nil && s.now().After(*user.SubscriptionExpiresAt) {
				plan = PlanFree
			}
		}
	case errors.Is(err, users.ErrNotFound):
		// First-time identity with no persisted row yet.
	default:
		return "", Limits{}, err
	}
	return plan, LimitsForPlan(plan, s.Cfg), nil
}

// CheckExportLimit returns LimitExceededError when the user has spent their
// quota for the rolling window.
func (s *SubscriptionService) CheckExportLimit(ctx context.Context, userID string) error {
	plan, limits, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if limits.Unlimited() {
		return nil
	}
	count, err := s.Store.CountCompletedSince(ctx, userID, s.now().Add(-limitWindow))
	if err != nil {
		return err
	}
	if count >= limits.MonthlyExports {
		return LimitExceededError{Plan: plan, Limit: limits.MonthlyExports, Used: count}
	}
	return nil
}

// ValidateBulkExport checks that the user's plan permits a bulk export of
// the given size and returns the effective limits.
func (s *SubscriptionService) ValidateBulkExport(ctx context.Context, userID string, resumeCount int) (Limits, error) {
	_, limits, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return Limits{}, err
	}
	if !limits.BulkExportEnabled {
		return Limits{}, PremiumRequiredError{Feature: "bulk export"}
	}
	if resumeCount > limits.MaxBulkResumes {
		return Limits{}, BulkLimitError{Requested: resumeCount, Max: limits.MaxBulkResumes}
	}
	return limits, nil
}

// IncrementUsage records one completed export in the calendar-month counter.
func (s *SubscriptionService) IncrementUsage(ctx context.Context, userID string) error {
	at := s.now()
	return s.Store.IncrementUsage(ctx, userID, MonthStart(at), at)
}

// MonthlyUsage returns the current calendar-month counter.
func (s *SubscriptionService) MonthlyUsage(ctx context.Context, userID string) (UsageRecord, error) {
	return s.Store.GetUsage(ctx, userID, MonthStart(s.now()))
}
