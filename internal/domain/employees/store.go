package employees

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Migiro-Johans/HRS/internal/domain/payroll"
)

var ErrNotFound = errors.New("employee not found")

// Store is the pgx-backed workforce directory and compensation ledger. It
// satisfies the payroll processor's Directory and CompensationSource
// interfaces.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateDepartment(ctx context.Context, name, code, description string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, code, description)
    VALUES ($1,$2,$3)
    RETURNING id
  `, name, code, description).Scan(&id)
	return id, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(code, ''), COALESCE(description, ''), created_at
    FROM departments
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.Code, &dept.Description, &dept.CreatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, dept)
	}
	return departments, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, employee Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (
      employee_number, first_name, last_name, email, department_id,
      job_title, employment_status, basic_salary, has_disability
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, employee.EmployeeNumber, employee.FirstName, employee.LastName, employee.Email,
		nullIfEmpty(employee.DepartmentID), employee.JobTitle, employee.EmploymentStatus,
		employee.BasicSalary, employee.HasDisability,
	).Scan(&id)
	return id, err
}

const employeeColumns = `
    id, COALESCE(employee_number, ''), first_name, last_name, email,
    COALESCE(department_id::text, ''), COALESCE(job_title, ''),
    employment_status, basic_salary, has_disability, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(
		&e.ID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &e.Email,
		&e.DepartmentID, &e.JobTitle,
		&e.EmploymentStatus, &e.BasicSalary, &e.HasDisability, &e.CreatedAt,
	)
	return e, err
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	employee, err := scanEmployee(s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return employee, err
}

func (s *Store) ListEmployees(ctx context.Context, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    ORDER BY first_name, last_name
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, employee)
	}
	return out, rows.Err()
}

// ListActiveEmployees is the workforce slice a payroll run covers.
func (s *Store) ListActiveEmployees(ctx context.Context) ([]payroll.EmployeeProfile, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(employee_number, ''), first_name, last_name, basic_salary, has_disability
    FROM employees
    WHERE employment_status = $1
    ORDER BY first_name, last_name
  `, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.EmployeeProfile
	for rows.Next() {
		var profile payroll.EmployeeProfile
		if err := rows.Scan(&profile.ID, &profile.EmployeeNumber, &profile.FirstName, &profile.LastName, &profile.BasicSalary, &profile.HasDisability); err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

func (s *Store) CreateAllowance(ctx context.Context, allowance Allowance) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employee_allowances (employee_id, kind, name, amount, taxable, effective_from, effective_to)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, allowance.EmployeeID, allowance.Kind, allowance.Name, allowance.Amount,
		allowance.Taxable, allowance.EffectiveFrom, allowance.EffectiveTo,
	).Scan(&id)
	return id, err
}

func (s *Store) CreateDeduction(ctx context.Context, deduction Deduction) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employee_deductions (employee_id, kind, name, amount, is_pretax, effective_from, effective_to)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, deduction.EmployeeID, deduction.Kind, deduction.Name, deduction.Amount,
		deduction.Pretax, deduction.EffectiveFrom, deduction.EffectiveTo,
	).Scan(&id)
	return id, err
}

// AllowancesFor returns the allowance line items valid at asOf.
func (s *Store) AllowancesFor(ctx context.Context, employeeID string, asOf time.Time) ([]payroll.AllowanceItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT kind, COALESCE(name, ''), amount, taxable
    FROM employee_allowances
    WHERE employee_id = $1
      AND effective_from <= $2
      AND (effective_to IS NULL OR effective_to >= $2)
    ORDER BY kind, name
  `, employeeID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []payroll.AllowanceItem
	for rows.Next() {
		var allowance Allowance
		if err := rows.Scan(&allowance.Kind, &allowance.Name, &allowance.Amount, &allowance.Taxable); err != nil {
			return nil, err
		}
		items = append(items, payroll.AllowanceItem{
			Name:    allowance.DisplayName(),
			Amount:  allowance.Amount,
			Taxable: allowance.Taxable,
		})
	}
	return items, rows.Err()
}

// DeductionsFor returns every recurring deduction valid at asOf, bucketed
// into the calculator's categories. Pension and insurance rows stay in the
// "other" bucket here; their pretax and relief treatment comes from the
// dedicated queries below.
func (s *Store) DeductionsFor(ctx context.Context, employeeID string, asOf time.Time) ([]payroll.DeductionItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT kind, name, amount
    FROM employee_deductions
    WHERE employee_id = $1
      AND effective_from <= $2
      AND (effective_to IS NULL OR effective_to >= $2)
    ORDER BY kind, name
  `, employeeID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []payroll.DeductionItem
	for rows.Next() {
		var kind, name string
		var amount decimal.Decimal
		if err := rows.Scan(&kind, &name, &amount); err != nil {
			return nil, err
		}
		items = append(items, payroll.DeductionItem{
			Name:     name,
			Amount:   amount,
			Category: bucketFor(kind),
		})
	}
	return items, rows.Err()
}

func bucketFor(kind string) string {
	switch kind {
	case DeductionLoan:
		return payroll.DeductionLoan
	case DeductionSacco:
		return payroll.DeductionSacco
	default:
		return payroll.DeductionOther
	}
}

// PretaxPensionFor returns the employee's pretax pension contribution valid
// at asOf, zero when none exists.
func (s *Store) PretaxPensionFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.DB.QueryRow(ctx, `
    SELECT amount
    FROM employee_deductions
    WHERE employee_id = $1
      AND kind = $2
      AND is_pretax = true
      AND effective_from <= $3
      AND (effective_to IS NULL OR effective_to >= $3)
    ORDER BY effective_from DESC
    LIMIT 1
  `, employeeID, DeductionPension, asOf).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return amount, err
}

// InsurancePremiumFor returns the insurance premium feeding the insurance
// relief, zero when none exists.
func (s *Store) InsurancePremiumFor(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.DB.QueryRow(ctx, `
    SELECT amount
    FROM employee_deductions
    WHERE employee_id = $1
      AND kind = $2
      AND effective_from <= $3
      AND (effective_to IS NULL OR effective_to >= $3)
    ORDER BY effective_from DESC
    LIMIT 1
  `, employeeID, DeductionInsurance, asOf).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return amount, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
