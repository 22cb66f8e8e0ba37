package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeDirectory struct {
	employees []EmployeeProfile
	err       error
}

func (f *fakeDirectory) ListActiveEmployees(ctx context.Context) ([]EmployeeProfile, error) {
	return f.employees, f.err
}

type fakeCompensation struct {
	allowances map[string][]AllowanceItem
	deductions map[string][]DeductionItem
	pensions   map[string]decimal.Decimal
	premiums   map[string]decimal.Decimal
	failFor    string
}

func (f *fakeCompensation) AllowancesFor(ctx context.Context, employeeID string, asOf time.Time) ([]AllowanceItem, error) {
	if employeeID == f.failFor {
		return nil, fmt.Errorf("compensation ledger unavailable")
	}
	return f.allowances[employeeID], nil
}

func (f *fakeCompensation) DeductionsFor(ctx context.Context, employeeID string, asOf time.Time) ([]DeductionItem, error) {
	return f.deductions[employeeID], nil
}

func (f *fakeCompensation) PretaxPensionFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	return f.pensions[employeeID], nil
}

func (f *fakeCompensation) InsurancePremiumFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	return f.premiums[employeeID], nil
}

type fakeRates struct {
	configs []RateConfig
}

func (f *fakeRates) GetActiveRateConfig(ctx context.Context, date time.Time) (RateConfig, error) {
	return ResolveRateConfig(f.configs, date)
}

// memPeriodStore mirrors the transactional store semantics in memory:
// CommitRun either applies every entry plus totals plus the stamp, or
// nothing.
type memPeriodStore struct {
	mu      sync.Mutex
	periods map[string]*Period
	entries map[string]map[string]Entry
	failRun bool
}

func newMemPeriodStore() *memPeriodStore {
	return &memPeriodStore{
		periods: map[string]*Period{},
		entries: map[string]map[string]Entry{},
	}
}

func (m *memPeriodStore) addPeriod(id string, year, month int) {
	m.periods[id] = &Period{
		ID:     id,
		Year:   year,
		Month:  month,
		Name:   PeriodName(year, month),
		Status: StatusDraft,
	}
	m.entries[id] = map[string]Entry{}
}

func (m *memPeriodStore) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return *period, nil
}

func (m *memPeriodStore) CommitRun(ctx context.Context, periodID string, entries []Entry, stamp RunStamp) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRun {
		return Totals{}, fmt.Errorf("storage unavailable")
	}
	period, ok := m.periods[periodID]
	if !ok {
		return Totals{}, ErrPeriodNotFound
	}
	for _, entry := range entries {
		m.entries[periodID][entry.EmployeeID] = entry
	}
	totals := sumEntries(m.entries[periodID])
	period.Totals = totals
	period.Status = stamp.Status
	period.PreparedBy = stamp.PreparedBy
	preparedAt := stamp.PreparedAt
	period.PreparedAt = &preparedAt
	return totals, nil
}

func sumEntries(entries map[string]Entry) Totals {
	var totals Totals
	for _, entry := range entries {
		totals.Gross = totals.Gross.Add(entry.GrossPay)
		totals.Net = totals.Net.Add(entry.NetPay)
		totals.PAYE = totals.PAYE.Add(entry.PAYE)
		totals.NSSF = totals.NSSF.Add(entry.NSSF)
		totals.SHA = totals.SHA.Add(entry.SHA)
		totals.HousingLevy = totals.HousingLevy.Add(entry.HousingLevy)
	}
	return totals
}

func (m *memPeriodStore) SaveStatus(ctx context.Context, periodID string, update StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	period.Status = update.Status
	if update.ClearApprovals {
		period.HRApprovedBy = ""
		period.HRApprovedAt = nil
		period.MgmtApprovedBy = ""
		period.MgmtApprovedAt = nil
		if period.HRComments == "" {
			period.HRComments = update.AppendComment
		} else {
			period.HRComments += "\n\n" + update.AppendComment
		}
		return nil
	}
	if update.HRApprovedAt != nil {
		period.HRApprovedBy = update.HRApprovedBy
		period.HRApprovedAt = update.HRApprovedAt
		period.HRComments = update.HRComments
	}
	if update.MgmtApprovedAt != nil {
		period.MgmtApprovedBy = update.MgmtApprovedBy
		period.MgmtApprovedAt = update.MgmtApprovedAt
		period.MgmtComments = update.MgmtComments
	}
	if update.PaymentDate != nil {
		period.PaymentDate = update.PaymentDate
	}
	return nil
}

func (m *memPeriodStore) ListEntries(ctx context.Context, periodID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, entry := range m.entries[periodID] {
		out = append(out, entry)
	}
	return out, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (r *recordingSink) PayrollTransition(ctx context.Context, event TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func testFixture() (*Processor, *memPeriodStore, *fakeCompensation, *recordingSink) {
	directory := &fakeDirectory{
		employees: []EmployeeProfile{
			{ID: "emp-1", FirstName: "Grace", LastName: "Wanjiku", BasicSalary: dec("53000")},
			{ID: "emp-2", FirstName: "Brian", LastName: "Otieno", BasicSalary: dec("36000"), HasDisability: true},
		},
	}
	comp := &fakeCompensation{
		allowances: map[string][]AllowanceItem{
			"emp-1": {{Name: "House Allowance", Amount: dec("12000"), Taxable: true}},
		},
		deductions: map[string][]DeductionItem{
			"emp-1": {{Name: "Sacco Savings", Amount: dec("4000"), Category: DeductionSacco}},
		},
		pensions: map[string]decimal.Decimal{"emp-1": dec("1080")},
		premiums: map[string]decimal.Decimal{},
	}
	rates := &fakeRates{configs: []RateConfig{DefaultRateConfig()}}
	store := newMemPeriodStore()
	store.addPeriod("p-2026-01", 2026, 1)
	sink := &recordingSink{}
	processor := NewProcessor(directory, comp, rates, store, sink, 4)
	return processor, store, comp, sink
}

func TestProcessAllCommitsEntriesAndTotals(t *testing.T) {
	processor, store, _, sink := testFixture()

	period, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period.Status != StatusPendingHR {
		t.Fatalf("expected status %s, got %s", StatusPendingHR, period.Status)
	}
	if period.PreparedBy != "hr@test.local" || period.PreparedAt == nil {
		t.Fatalf("expected prepared stamp, got %q %v", period.PreparedBy, period.PreparedAt)
	}

	entries, err := store.ListEntries(context.Background(), "p-2026-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	want := sumEntries(store.entries["p-2026-01"])
	if !period.Totals.Gross.Equal(want.Gross) || !period.Totals.Net.Equal(want.Net) ||
		!period.Totals.PAYE.Equal(want.PAYE) || !period.Totals.NSSF.Equal(want.NSSF) ||
		!period.Totals.SHA.Equal(want.SHA) || !period.Totals.HousingLevy.Equal(want.HousingLevy) {
		t.Fatalf("period totals diverge from entry sums: %+v vs %+v", period.Totals, want)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 transition event, got %d", len(sink.events))
	}
	if sink.events[0].From != StatusDraft || sink.events[0].To != StatusPendingHR {
		t.Fatalf("unexpected transition event: %+v", sink.events[0])
	}
}

func TestProcessAllUsesSingleConfigSnapshot(t *testing.T) {
	processor, store, _, _ := testFixture()

	if _, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := store.ListEntries(context.Background(), "p-2026-01")
	for _, entry := range entries {
		if !entry.PersonalRelief.Equal(dec("2400")) {
			t.Fatalf("expected every entry computed with the same snapshot, got relief %s", entry.PersonalRelief)
		}
	}
}

func TestProcessAllRequiresDraft(t *testing.T) {
	processor, store, _, _ := testFixture()
	store.periods["p-2026-01"].Status = StatusPendingHR

	_, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestProcessAllConfigurationMissing(t *testing.T) {
	processor, store, _, _ := testFixture()
	processor.rates = &fakeRates{}

	_, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}

	period, _ := store.GetPeriod(context.Background(), "p-2026-01")
	if period.Status != StatusDraft {
		t.Fatalf("expected period untouched in draft, got %s", period.Status)
	}
	if entries, _ := store.ListEntries(context.Background(), "p-2026-01"); len(entries) != 0 {
		t.Fatalf("expected no entries committed, got %d", len(entries))
	}
}

func TestProcessAllAbortsWholeRunOnEmployeeFailure(t *testing.T) {
	processor, store, comp, _ := testFixture()
	comp.failFor = "emp-2"

	_, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	var procErr *EmployeeProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected EmployeeProcessingError, got %v", err)
	}
	if procErr.EmployeeID != "emp-2" {
		t.Fatalf("expected offending employee emp-2, got %s", procErr.EmployeeID)
	}

	if entries, _ := store.ListEntries(context.Background(), "p-2026-01"); len(entries) != 0 {
		t.Fatalf("expected no partial commit, got %d entries", len(entries))
	}
	period, _ := store.GetPeriod(context.Background(), "p-2026-01")
	if period.Status != StatusDraft {
		t.Fatalf("expected period to stay in draft, got %s", period.Status)
	}
}

func TestProcessAllRejectsNegativeAmounts(t *testing.T) {
	processor, _, comp, _ := testFixture()
	comp.deductions["emp-1"] = []DeductionItem{
		{Name: "Car Loan", Amount: dec("-500"), Category: DeductionLoan},
	}

	_, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	var procErr *EmployeeProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected EmployeeProcessingError, got %v", err)
	}
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected wrapped ValidationError, got %v", err)
	}
	if procErr.EmployeeID != "emp-1" {
		t.Fatalf("expected offending employee emp-1, got %s", procErr.EmployeeID)
	}
}

func TestProcessAllIdempotentReprocessing(t *testing.T) {
	processor, store, _, _ := testFixture()
	ctx := context.Background()

	if _, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstEntries, _ := store.ListEntries(ctx, "p-2026-01")
	firstPeriod, _ := store.GetPeriod(ctx, "p-2026-01")

	if _, err := processor.Reject(ctx, "p-2026-01", "hr-manager@test.local", "rerun with same inputs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secondPeriod, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secondEntries, _ := store.ListEntries(ctx, "p-2026-01")
	if len(secondEntries) != len(firstEntries) {
		t.Fatalf("expected entry count unchanged, got %d then %d", len(firstEntries), len(secondEntries))
	}
	if !secondPeriod.Totals.Gross.Equal(firstPeriod.Totals.Gross) ||
		!secondPeriod.Totals.Net.Equal(firstPeriod.Totals.Net) {
		t.Fatalf("expected totals unchanged on reprocess: %+v vs %+v", firstPeriod.Totals, secondPeriod.Totals)
	}
}

func TestApprovalWorkflow(t *testing.T) {
	processor, _, _, sink := testFixture()
	ctx := context.Background()

	if _, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	period, err := processor.ApproveHR(ctx, "p-2026-01", "hr-manager@test.local", "verified against register")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period.Status != StatusPendingManagement {
		t.Fatalf("expected %s, got %s", StatusPendingManagement, period.Status)
	}
	if period.HRApprovedBy != "hr-manager@test.local" || period.HRApprovedAt == nil {
		t.Fatalf("expected hr approval stamp, got %+v", period)
	}

	period, err = processor.ApproveManagement(ctx, "p-2026-01", "md@test.local", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period.Status != StatusApproved {
		t.Fatalf("expected %s, got %s", StatusApproved, period.Status)
	}

	payday := date(2026, time.January, 28)
	period, err = processor.MarkPaid(ctx, "p-2026-01", "accounts@test.local", payday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period.Status != StatusPaid {
		t.Fatalf("expected %s, got %s", StatusPaid, period.Status)
	}
	if period.PaymentDate == nil || !period.PaymentDate.Equal(payday) {
		t.Fatalf("expected payment date stamped, got %v", period.PaymentDate)
	}

	if len(sink.events) != 4 {
		t.Fatalf("expected 4 transition events, got %d", len(sink.events))
	}
}

func TestApprovalsFailOutsidePrecondition(t *testing.T) {
	processor, _, _, _ := testFixture()
	ctx := context.Background()

	// Period is in draft: every approval-stage operation must refuse.
	if _, err := processor.ApproveHR(ctx, "p-2026-01", "a", ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from ApproveHR, got %v", err)
	}
	if _, err := processor.ApproveManagement(ctx, "p-2026-01", "a", ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from ApproveManagement, got %v", err)
	}
	if _, err := processor.Reject(ctx, "p-2026-01", "a", "no"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from Reject, got %v", err)
	}
	if _, err := processor.MarkPaid(ctx, "p-2026-01", "a", time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from MarkPaid, got %v", err)
	}

	if _, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Skipping the HR stage is not allowed.
	if _, err := processor.ApproveManagement(ctx, "p-2026-01", "md@test.local", ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestRejectClearsStampsAndAppendsNotes(t *testing.T) {
	processor, _, _, _ := testFixture()
	ctx := context.Background()

	if _, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := processor.ApproveHR(ctx, "p-2026-01", "hr-manager@test.local", "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	period, err := processor.Reject(ctx, "p-2026-01", "md@test.local", "headcount mismatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period.Status != StatusDraft {
		t.Fatalf("expected draft after reject, got %s", period.Status)
	}
	if period.HRApprovedBy != "" || period.HRApprovedAt != nil || period.MgmtApprovedBy != "" || period.MgmtApprovedAt != nil {
		t.Fatalf("expected approval stamps cleared, got %+v", period)
	}
	if !strings.Contains(period.HRComments, "headcount mismatch") {
		t.Fatalf("expected rejection note in comment trail, got %q", period.HRComments)
	}

	// A second rejection appends; the first note survives.
	if _, err := processor.ProcessAll(ctx, "p-2026-01", "hr@test.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	period, err = processor.Reject(ctx, "p-2026-01", "hr-manager@test.local", "allowance data stale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(period.HRComments, "headcount mismatch") || !strings.Contains(period.HRComments, "allowance data stale") {
		t.Fatalf("expected both rejection notes preserved, got %q", period.HRComments)
	}
}

func TestProcessAllPropagatesCommitFailure(t *testing.T) {
	processor, store, _, sink := testFixture()
	store.failRun = true

	_, err := processor.ProcessAll(context.Background(), "p-2026-01", "hr@test.local")
	if err == nil {
		t.Fatal("expected commit failure to propagate")
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no transition event on failed commit, got %d", len(sink.events))
	}
}
