package employees

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusSuspended  = "suspended"
	StatusTerminated = "terminated"
	StatusResigned   = "resigned"

	AllowanceHouse          = "house"
	AllowanceTransport      = "transport"
	AllowanceMedical        = "medical"
	AllowanceAirtime        = "airtime"
	AllowanceLunch          = "lunch"
	AllowanceHardship       = "hardship"
	AllowanceResponsibility = "responsibility"
	AllowanceOther          = "other"

	DeductionLoan      = "loan"
	DeductionAdvance   = "advance"
	DeductionSacco     = "sacco"
	DeductionInsurance = "insurance"
	DeductionPension   = "pension"
	DeductionOther     = "other"
)

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Employee struct {
	ID               string          `json:"id"`
	EmployeeNumber   string          `json:"employeeNumber"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	Email            string          `json:"email"`
	DepartmentID     string          `json:"departmentId,omitempty"`
	JobTitle         string          `json:"jobTitle,omitempty"`
	EmploymentStatus string          `json:"employmentStatus"`
	BasicSalary      decimal.Decimal `json:"basicSalary"`
	HasDisability    bool            `json:"hasDisability"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Allowance is a recurring monthly allowance with a validity window; an
// open window has a nil EffectiveTo.
type Allowance struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employeeId"`
	Kind          string          `json:"kind"`
	Name          string          `json:"name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Taxable       bool            `json:"taxable"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
}

// Deduction is a recurring deduction. Statutory deductions are never stored
// here; the payroll calculator derives them. Pretax pension rows reduce
// taxable income, insurance rows feed the insurance relief.
type Deduction struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employeeId"`
	Kind          string          `json:"kind"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	Pretax        bool            `json:"pretax"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
}

// DisplayName resolves the allowance label the way payslips show it: the
// custom name for "other", the kind otherwise.
func (a Allowance) DisplayName() string {
	if a.Kind == AllowanceOther && a.Name != "" {
		return a.Name
	}
	if a.Name != "" {
		return a.Name
	}
	return a.Kind
}
