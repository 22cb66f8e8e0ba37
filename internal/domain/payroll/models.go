package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxBand is one progressive PAYE band. Bands are ordered ascending by
// UpperLimit; the final band is unbounded and its UpperLimit is ignored.
type TaxBand struct {
	UpperLimit decimal.Decimal `json:"upperLimit"`
	Rate       decimal.Decimal `json:"rate"`
}

// RateConfig is an immutable snapshot of the statutory parameters in force
// for a validity window. Amounts are monthly.
type RateConfig struct {
	ID                  string          `json:"id"`
	Bands               []TaxBand       `json:"bands"`
	PersonalRelief      decimal.Decimal `json:"personalRelief"`
	InsuranceReliefRate decimal.Decimal `json:"insuranceReliefRate"`
	InsuranceReliefCap  decimal.Decimal `json:"insuranceReliefCap"`
	DisabilityExemption decimal.Decimal `json:"disabilityExemption"`
	NSSFTier1Limit      decimal.Decimal `json:"nssfTier1Limit"`
	NSSFTier1Rate       decimal.Decimal `json:"nssfTier1Rate"`
	NSSFTier2Limit      decimal.Decimal `json:"nssfTier2Limit"`
	NSSFTier2Rate       decimal.Decimal `json:"nssfTier2Rate"`
	SHARate             decimal.Decimal `json:"shaRate"`
	HousingLevyRate     decimal.Decimal `json:"housingLevyRate"`
	PensionCap          decimal.Decimal `json:"pensionCap"`
	MortgageInterestCap decimal.Decimal `json:"mortgageInterestCap"`
	EffectiveFrom       time.Time       `json:"effectiveFrom"`
	EffectiveTo         *time.Time      `json:"effectiveTo,omitempty"`
	Active              bool            `json:"active"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type AllowanceItem struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}

type DeductionItem struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
}

// CompensationInput is assembled per employee per run and never persisted;
// only the resulting Entry is.
type CompensationInput struct {
	EmployeeID          string
	BasicSalary         decimal.Decimal
	Allowances          []AllowanceItem
	Deductions          []DeductionItem
	PensionContribution decimal.Decimal
	MortgageInterest    decimal.Decimal
	InsurancePremium    decimal.Decimal
	HasDisability       bool
}

// Result is the itemized outcome of one employee's calculation. Every
// monetary field is rounded to two decimal places.
type Result struct {
	BasicSalary          decimal.Decimal `json:"basicSalary"`
	TaxableAllowances    decimal.Decimal `json:"taxableAllowances"`
	NonTaxableAllowances decimal.Decimal `json:"nonTaxableAllowances"`
	GrossPay             decimal.Decimal `json:"grossPay"`

	PensionContribution decimal.Decimal `json:"pensionContribution"`
	PensionDeductible   decimal.Decimal `json:"pensionDeductible"`
	MortgageInterest    decimal.Decimal `json:"mortgageInterest"`
	MortgageDeductible  decimal.Decimal `json:"mortgageDeductible"`

	TaxableIncome       decimal.Decimal `json:"taxableIncome"`
	TaxCharged          decimal.Decimal `json:"taxCharged"`
	PersonalRelief      decimal.Decimal `json:"personalRelief"`
	InsuranceRelief     decimal.Decimal `json:"insuranceRelief"`
	DisabilityExemption decimal.Decimal `json:"disabilityExemption"`
	PAYE                decimal.Decimal `json:"paye"`

	NSSF        decimal.Decimal `json:"nssf"`
	SHA         decimal.Decimal `json:"sha"`
	HousingLevy decimal.Decimal `json:"housingLevy"`

	LoanDeductions  decimal.Decimal `json:"loanDeductions"`
	SaccoDeductions decimal.Decimal `json:"saccoDeductions"`
	OtherDeductions decimal.Decimal `json:"otherDeductions"`

	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	NetPay          decimal.Decimal `json:"netPay"`

	AllowanceDetails []AllowanceItem `json:"allowanceDetails"`
	DeductionDetails []DeductionItem `json:"deductionDetails"`
}

// Entry is a Result bound to (period, employee), unique per pair.
type Entry struct {
	ID         string `json:"id"`
	PeriodID   string `json:"periodId"`
	EmployeeID string `json:"employeeId"`
	Result
	UpdatedAt time.Time `json:"updatedAt"`
}

type Totals struct {
	Gross       decimal.Decimal `json:"gross"`
	Net         decimal.Decimal `json:"net"`
	PAYE        decimal.Decimal `json:"paye"`
	NSSF        decimal.Decimal `json:"nssf"`
	SHA         decimal.Decimal `json:"sha"`
	HousingLevy decimal.Decimal `json:"housingLevy"`
}

type Period struct {
	ID     string `json:"id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Name   string `json:"name"`
	Status string `json:"status"`

	PreparedBy string     `json:"preparedBy,omitempty"`
	PreparedAt *time.Time `json:"preparedAt,omitempty"`

	HRApprovedBy string     `json:"hrApprovedBy,omitempty"`
	HRApprovedAt *time.Time `json:"hrApprovedAt,omitempty"`
	HRComments   string     `json:"hrComments,omitempty"`

	MgmtApprovedBy string     `json:"mgmtApprovedBy,omitempty"`
	MgmtApprovedAt *time.Time `json:"mgmtApprovedAt,omitempty"`
	MgmtComments   string     `json:"mgmtComments,omitempty"`

	PaymentDate *time.Time `json:"paymentDate,omitempty"`

	Totals    Totals    `json:"totals"`
	CreatedAt time.Time `json:"createdAt"`
}

// PeriodName renders the display name for a (year, month) pair,
// e.g. "January 2026".
func PeriodName(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// ReferenceDate is the date compensation and rate lookups are made as of:
// the first day of the period's month.
func (p Period) ReferenceDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// EmployeeProfile is the slice of the workforce directory the processor
// needs; the full employee record lives in the employees domain.
type EmployeeProfile struct {
	ID             string
	EmployeeNumber string
	FirstName      string
	LastName       string
	BasicSalary    decimal.Decimal
	HasDisability  bool
}

// RunStamp records who prepared a run and when.
type RunStamp struct {
	PreparedBy string
	PreparedAt time.Time
	Status     string
}

// StatusUpdate carries a state transition plus the approval stamps it
// sets or clears.
type StatusUpdate struct {
	Status         string
	HRApprovedBy   string
	HRApprovedAt   *time.Time
	HRComments     string
	MgmtApprovedBy string
	MgmtApprovedAt *time.Time
	MgmtComments   string
	ClearApprovals bool
	AppendComment  string
	PaymentDate    *time.Time
}

// TransitionEvent is published to the audit sink after every successful
// state transition.
type TransitionEvent struct {
	PeriodID string
	Actor    string
	From     string
	To       string
	At       time.Time
}
