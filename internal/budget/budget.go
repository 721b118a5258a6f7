// Package budget implements per-account spending budgets: a recurring period
// maps a coin allotment to a daily limit, and a lazily rolled-over counter
// tracks how much of today's limit is used.
package budget

import (
	"errors"
	"time"
)

type Period string

const (
	PeriodNone       Period = "none"
	PeriodWeek       Period = "week"
	PeriodTwoWeeks   Period = "two_weeks"
	PeriodThreeWeeks Period = "three_weeks"
	PeriodMonth      Period = "month"
)

var ErrInvalidPeriod = errors.New("invalid budget period")

func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case PeriodNone, PeriodWeek, PeriodTwoWeeks, PeriodThreeWeeks, PeriodMonth:
		return Period(raw), nil
	}
	return "", ErrInvalidPeriod
}

func (p Period) Days() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodTwoWeeks:
		return 14
	case PeriodThreeWeeks:
		return 21
	case PeriodMonth:
		return 30
	default:
		return 0
	}
}

// State is the budget-relevant slice of an account.
type State struct {
	Period         Period
	BudgetCoins    int64
	DailySpent     int64
	DailySpentDate time.Time
}

// DailyLimit divides the allotment evenly across the period, floor division.
// The remainder is not redistributed; up to days-1 coins of the budget stay
// unreachable through the daily cap.
func (s State) DailyLimit() int64 {
	days := s.Period.Days()
	if days == 0 {
		return 0
	}
	return s.BudgetCoins / int64(days)
}

// Rollover returns the state as of now: if the stored spent-date is not
// today, the daily counter resets. It never persists anything; the caller
// decides whether to write the changed state back.
func Rollover(now time.Time, s State) (State, bool) {
	if sameDay(now, s.DailySpentDate) {
		return s, false
	}
	s.DailySpent = 0
	s.DailySpentDate = dateOnly(now)
	return s, true
}

type Reason string

const (
	ReasonOK                     Reason = "ok"
	ReasonNoBalance              Reason = "no_balance"
	ReasonLowBalance             Reason = "low_balance"
	ReasonDailyLimitReached      Reason = "daily_limit_reached"
	ReasonDailyLimitInsufficient Reason = "daily_limit_insufficient"
)

type Decision struct {
	CanProceed     bool
	Reason         Reason
	DailyLimit     int64
	DailySpent     int64
	DailyRemaining int64
}

// Evaluate checks whether a spend of estimatedCost coins is allowed against
// the current balance and today's budget. The state must already be rolled
// over to now.
func Evaluate(s State, balance, estimatedCost int64) Decision {
	d := Decision{
		DailyLimit: s.DailyLimit(),
		DailySpent: s.DailySpent,
	}
	d.DailyRemaining = remaining(d.DailyLimit, d.DailySpent, balance)
	if balance <= 0 {
		d.Reason = ReasonNoBalance
		return d
	}
	if balance < estimatedCost {
		d.Reason = ReasonLowBalance
		return d
	}
	if s.Period != PeriodNone && d.DailyLimit > 0 {
		if d.DailySpent >= d.DailyLimit {
			d.Reason = ReasonDailyLimitReached
			return d
		}
		if d.DailyLimit-d.DailySpent < estimatedCost {
			d.Reason = ReasonDailyLimitInsufficient
			return d
		}
	}
	d.CanProceed = true
	d.Reason = ReasonOK
	return d
}

// remaining reports today's headroom; without an active limit the whole
// balance is the headroom.
func remaining(limit, spent, balance int64) int64 {
	if limit <= 0 {
		return balance
	}
	if spent >= limit {
		return 0
	}
	return limit - spent
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
