package payroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Processor drives a payroll period through its workflow: it recomputes the
// full workforce for a period, persists entries atomically and advances the
// bounded approval state machine. All operations on one period serialize on
// a per-period lock so concurrent calls cannot interleave.
type Processor struct {
	directory Directory
	comp      CompensationSource
	rates     RateConfigSource
	periods   PeriodStore
	sink      TransitionSink
	workers   int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProcessor(directory Directory, comp CompensationSource, rates RateConfigSource, periods PeriodStore, sink TransitionSink, workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		directory: directory,
		comp:      comp,
		rates:     rates,
		periods:   periods,
		sink:      sink,
		workers:   workers,
		locks:     map[string]*sync.Mutex{},
	}
}

func (p *Processor) periodLock(periodID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[periodID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[periodID] = lock
	}
	return lock
}

// ProcessAll recomputes every active employee for the period and commits
// the run as one unit: either all entries land and the period moves to
// pending_hr, or nothing is written and the period stays in draft. The rate
// configuration is resolved once so every entry of the run uses an
// identical snapshot. Reprocessing a draft period overwrites prior entries
// instead of duplicating them.
func (p *Processor) ProcessAll(ctx context.Context, periodID, actor string) (Period, error) {
	lock := p.periodLock(periodID)
	lock.Lock()
	defer lock.Unlock()

	period, err := p.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Status != StatusDraft {
		return Period{}, fmt.Errorf("%w: process requires %s, period is %s", ErrInvalidStateTransition, StatusDraft, period.Status)
	}

	asOf := period.ReferenceDate()
	cfg, err := p.rates.GetActiveRateConfig(ctx, asOf)
	if err != nil {
		return Period{}, err
	}

	employees, err := p.directory.ListActiveEmployees(ctx)
	if err != nil {
		return Period{}, err
	}

	// Per-employee calculations are independent given the shared snapshot,
	// so they fan out; results are indexed to keep the run deterministic.
	// The first failure cancels the group and aborts the whole run.
	entries := make([]Entry, len(employees))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for i, employee := range employees {
		i, employee := i, employee
		group.Go(func() error {
			input, err := p.assembleInput(groupCtx, employee, asOf)
			if err != nil {
				return &EmployeeProcessingError{EmployeeID: employee.ID, Err: err}
			}
			entries[i] = Entry{
				PeriodID:   periodID,
				EmployeeID: employee.ID,
				Result:     Compute(input, cfg),
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Period{}, err
	}

	now := time.Now().UTC()
	stamp := RunStamp{PreparedBy: actor, PreparedAt: now, Status: StatusPendingHR}
	totals, err := p.periods.CommitRun(ctx, periodID, entries, stamp)
	if err != nil {
		return Period{}, err
	}

	p.notify(ctx, periodID, actor, StatusDraft, StatusPendingHR, now)

	period.Status = StatusPendingHR
	period.PreparedBy = actor
	period.PreparedAt = &now
	period.Totals = totals
	return period, nil
}

// ApproveHR moves a pending_hr period to pending_mgmt.
func (p *Processor) ApproveHR(ctx context.Context, periodID, actor, comments string) (Period, error) {
	return p.transition(ctx, periodID, StatusPendingHR, StatusPendingManagement, func(now time.Time) StatusUpdate {
		return StatusUpdate{
			Status:       StatusPendingManagement,
			HRApprovedBy: actor,
			HRApprovedAt: &now,
			HRComments:   comments,
		}
	}, actor)
}

// ApproveManagement moves a pending_mgmt period to approved.
func (p *Processor) ApproveManagement(ctx context.Context, periodID, actor, comments string) (Period, error) {
	return p.transition(ctx, periodID, StatusPendingManagement, StatusApproved, func(now time.Time) StatusUpdate {
		return StatusUpdate{
			Status:         StatusApproved,
			MgmtApprovedBy: actor,
			MgmtApprovedAt: &now,
			MgmtComments:   comments,
		}
	}, actor)
}

// Reject returns a pending period to draft, clears both approval stamps
// and appends a timestamped rejection note to the comment trail. Notes are
// never overwritten, so repeated rejections stay visible.
func (p *Processor) Reject(ctx context.Context, periodID, actor, comments string) (Period, error) {
	lock := p.periodLock(periodID)
	lock.Lock()
	defer lock.Unlock()

	period, err := p.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Status != StatusPendingHR && period.Status != StatusPendingManagement {
		return Period{}, fmt.Errorf("%w: reject requires a pending approval status, period is %s", ErrInvalidStateTransition, period.Status)
	}

	now := time.Now().UTC()
	note := fmt.Sprintf("[%s] Rejected by %s: %s", now.Format(time.RFC3339), actor, comments)
	update := StatusUpdate{
		Status:         StatusDraft,
		ClearApprovals: true,
		AppendComment:  note,
	}
	if err := p.periods.SaveStatus(ctx, periodID, update); err != nil {
		return Period{}, err
	}

	p.notify(ctx, periodID, actor, period.Status, StatusDraft, now)
	return p.periods.GetPeriod(ctx, periodID)
}

// MarkPaid records the external payment step for an approved period.
func (p *Processor) MarkPaid(ctx context.Context, periodID, actor string, paymentDate time.Time) (Period, error) {
	return p.transition(ctx, periodID, StatusApproved, StatusPaid, func(now time.Time) StatusUpdate {
		return StatusUpdate{
			Status:      StatusPaid,
			PaymentDate: &paymentDate,
		}
	}, actor)
}

func (p *Processor) transition(ctx context.Context, periodID, from, to string, build func(now time.Time) StatusUpdate, actor string) (Period, error) {
	lock := p.periodLock(periodID)
	lock.Lock()
	defer lock.Unlock()

	period, err := p.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Status != from {
		return Period{}, fmt.Errorf("%w: requires %s, period is %s", ErrInvalidStateTransition, from, period.Status)
	}

	now := time.Now().UTC()
	if err := p.periods.SaveStatus(ctx, periodID, build(now)); err != nil {
		return Period{}, err
	}

	p.notify(ctx, periodID, actor, from, to, now)
	return p.periods.GetPeriod(ctx, periodID)
}

func (p *Processor) notify(ctx context.Context, periodID, actor, from, to string, at time.Time) {
	if p.sink == nil {
		return
	}
	p.sink.PayrollTransition(ctx, TransitionEvent{
		PeriodID: periodID,
		Actor:    actor,
		From:     from,
		To:       to,
		At:       at,
	})
}

func (p *Processor) assembleInput(ctx context.Context, employee EmployeeProfile, asOf time.Time) (CompensationInput, error) {
	allowances, err := p.comp.AllowancesFor(ctx, employee.ID, asOf)
	if err != nil {
		return CompensationInput{}, err
	}
	deductions, err := p.comp.DeductionsFor(ctx, employee.ID, asOf)
	if err != nil {
		return CompensationInput{}, err
	}
	pension, err := p.comp.PretaxPensionFor(ctx, employee.ID, asOf)
	if err != nil {
		return CompensationInput{}, err
	}
	premium, err := p.comp.InsurancePremiumFor(ctx, employee.ID, asOf)
	if err != nil {
		return CompensationInput{}, err
	}

	input := CompensationInput{
		EmployeeID:          employee.ID,
		BasicSalary:         employee.BasicSalary,
		Allowances:          allowances,
		Deductions:          deductions,
		PensionContribution: pension,
		InsurancePremium:    premium,
		HasDisability:       employee.HasDisability,
	}
	if err := validateInput(input); err != nil {
		return CompensationInput{}, err
	}
	return input, nil
}

// validateInput screens malformed compensation data before the calculator
// sees it; a failure escalates to EmployeeProcessingError semantics and
// aborts the run.
func validateInput(input CompensationInput) error {
	if input.BasicSalary.IsNegative() {
		return &ValidationError{Field: "basicSalary", Reason: "must not be negative"}
	}
	for _, item := range input.Allowances {
		if item.Amount.IsNegative() {
			return &ValidationError{Field: "allowance " + item.Name, Reason: "must not be negative"}
		}
	}
	for _, item := range input.Deductions {
		if item.Amount.IsNegative() {
			return &ValidationError{Field: "deduction " + item.Name, Reason: "must not be negative"}
		}
	}
	if input.PensionContribution.IsNegative() {
		return &ValidationError{Field: "pensionContribution", Reason: "must not be negative"}
	}
	if input.MortgageInterest.IsNegative() {
		return &ValidationError{Field: "mortgageInterest", Reason: "must not be negative"}
	}
	if input.InsurancePremium.IsNegative() {
		return &ValidationError{Field: "insurancePremium", Reason: "must not be negative"}
	}
	return nil
}
