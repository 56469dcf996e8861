// Package report builds the reconciliation views over stored reconcile
// events: headline metrics, per-user anomalies, daily trends and CSV export.
package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/service"
)

// Source is the part of the store reports read from.
type Source interface {
	GetReconcileEvents(ctx context.Context, filter service.ReconcileFilter) ([]model.ReconcileEvent, error)
	GetReconcileSummary(ctx context.Context, filter service.ReconcileFilter) (*service.ReconcileSummary, error)
}

// UserAnomaly aggregates the mismatches of one user.
type UserAnomaly struct {
	UserID        string
	Mismatches    int
	Overdrafts    int
	MismatchValue float64 // sum of logged minus expected balance over calculation mismatches
}

// DailyTrend counts events per calendar day of the logged timestamp.
type DailyTrend struct {
	ByMismatch map[model.MismatchType]int
	Day        string
	Events     int
}

// Report is one filtered reconciliation view.
type Report struct {
	Summary *service.ReconcileSummary
	Filter  service.ReconcileFilter
	Events  []model.ReconcileEvent
	Users   []UserAnomaly
	Daily   []DailyTrend
}

// Build reads the filtered events and derives every view from them.
func Build(ctx context.Context, src Source, filter service.ReconcileFilter, topUsers int) (*Report, error) {
	summary, err := src.GetReconcileSummary(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	events, err := src.GetReconcileEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load reconcile events: %w", err)
	}

	return &Report{
		Filter:  filter,
		Summary: summary,
		Events:  events,
		Users:   TopUsers(events, topUsers),
		Daily:   Daily(events),
	}, nil
}

// TopUsers ranks users by mismatch count, then by absolute mismatch value.
// Users without any mismatch or overdraft are left out. A limit of zero or
// less returns every user.
func TopUsers(events []model.ReconcileEvent, limit int) []UserAnomaly {
	byUser := make(map[string]*UserAnomaly)
	values := make(map[string]decimal.Decimal)

	for _, ev := range events {
		mismatch := ev.MismatchType != model.MismatchNone
		if !mismatch && !ev.IsOverdraft {
			continue
		}
		u, ok := byUser[ev.UserID]
		if !ok {
			u = &UserAnomaly{UserID: ev.UserID}
			byUser[ev.UserID] = u
		}
		if mismatch {
			u.Mismatches++
		}
		if ev.IsOverdraft {
			u.Overdrafts++
		}
		if IsCalculationMismatch(ev.MismatchType) {
			diff := decimal.NewFromFloat(ev.NewBalance).Sub(decimal.NewFromFloat(ev.ExpectedNewBalance))
			values[ev.UserID] = values[ev.UserID].Add(diff)
		}
	}

	users := make([]UserAnomaly, 0, len(byUser))
	for id, u := range byUser {
		u.MismatchValue = values[id].Round(2).InexactFloat64()
		users = append(users, *u)
	}
	slices.SortFunc(users, func(a, b UserAnomaly) int {
		if c := cmp.Compare(b.Mismatches, a.Mismatches); c != 0 {
			return c
		}
		if c := decimal.NewFromFloat(b.MismatchValue).Abs().Cmp(decimal.NewFromFloat(a.MismatchValue).Abs()); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users
}

// Daily buckets events by the date prefix of their timestamp, oldest first.
// Events without a usable timestamp are counted under "unknown".
func Daily(events []model.ReconcileEvent) []DailyTrend {
	byDay := make(map[string]*DailyTrend)
	for _, ev := range events {
		day := dayOf(ev.Timestamp)
		d, ok := byDay[day]
		if !ok {
			d = &DailyTrend{Day: day, ByMismatch: make(map[model.MismatchType]int)}
			byDay[day] = d
		}
		d.Events++
		d.ByMismatch[ev.MismatchType]++
	}

	trends := make([]DailyTrend, 0, len(byDay))
	for _, d := range byDay {
		trends = append(trends, *d)
	}
	slices.SortFunc(trends, func(a, b DailyTrend) int { return cmp.Compare(a.Day, b.Day) })
	return trends
}

// IsCalculationMismatch reports whether m includes a calculation issue.
func IsCalculationMismatch(m model.MismatchType) bool {
	return m == model.MismatchCalculation || m == model.MismatchCalculationAndBalanceSync
}

func dayOf(timestamp string) string {
	if len(timestamp) < 10 || timestamp[4] != '-' || timestamp[7] != '-' {
		return "unknown"
	}
	return timestamp[:10]
}
