package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Directory lists the workforce a run covers. Employee and department
// management live in the employees domain.
type Directory interface {
	ListActiveEmployees(ctx context.Context) ([]EmployeeProfile, error)
}

// CompensationSource answers per-employee compensation queries as of a
// reference date. Every query selects rows whose validity window
// (effective_from <= asOf <= effective_to-or-open) contains asOf.
type CompensationSource interface {
	AllowancesFor(ctx context.Context, employeeID string, asOf time.Time) ([]AllowanceItem, error)
	DeductionsFor(ctx context.Context, employeeID string, asOf time.Time) ([]DeductionItem, error)
	PretaxPensionFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error)
	InsurancePremiumFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error)
}

type RateConfigSource interface {
	GetActiveRateConfig(ctx context.Context, date time.Time) (RateConfig, error)
}

// PeriodStore persists periods and their entries. CommitRun is the
// unit-of-work boundary: all entries of a run, the recomputed totals, the
// run stamp and the status transition land in one transaction or not at
// all.
type PeriodStore interface {
	GetPeriod(ctx context.Context, periodID string) (Period, error)
	CommitRun(ctx context.Context, periodID string, entries []Entry, stamp RunStamp) (Totals, error)
	SaveStatus(ctx context.Context, periodID string, update StatusUpdate) error
	ListEntries(ctx context.Context, periodID string) ([]Entry, error)
}

// TransitionSink is notified after each successful state transition.
// Delivery is fire-and-forget; implementations log their own failures.
type TransitionSink interface {
	PayrollTransition(ctx context.Context, event TransitionEvent)
}
