package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the pgx-backed implementation of RateConfigSource and
// PeriodStore. The workforce directory and compensation ledger live in the
// employees domain.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreatePeriod(ctx context.Context, year, month int) (Period, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (year, month, name)
    VALUES ($1,$2,$3)
    RETURNING id
  `, year, month, PeriodName(year, month)).Scan(&id)
	if err != nil {
		return Period{}, err
	}
	return s.GetPeriod(ctx, id)
}

const periodColumns = `
    id, year, month, name, status,
    COALESCE(prepared_by, ''), prepared_at,
    COALESCE(hr_approved_by, ''), hr_approved_at, COALESCE(hr_comments, ''),
    COALESCE(mgmt_approved_by, ''), mgmt_approved_at, COALESCE(mgmt_comments, ''),
    payment_date,
    total_gross, total_net, total_paye, total_nssf, total_sha, total_housing_levy,
    created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(
		&p.ID, &p.Year, &p.Month, &p.Name, &p.Status,
		&p.PreparedBy, &p.PreparedAt,
		&p.HRApprovedBy, &p.HRApprovedAt, &p.HRComments,
		&p.MgmtApprovedBy, &p.MgmtApprovedAt, &p.MgmtComments,
		&p.PaymentDate,
		&p.Totals.Gross, &p.Totals.Net, &p.Totals.PAYE, &p.Totals.NSSF, &p.Totals.SHA, &p.Totals.HousingLevy,
		&p.CreatedAt,
	)
	return p, err
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	period, err := scanPeriod(s.DB.QueryRow(ctx, `
    SELECT`+periodColumns+`
    FROM payroll_periods
    WHERE id = $1
  `, periodID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Store) ListPeriods(ctx context.Context, limit, offset int) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+periodColumns+`
    FROM payroll_periods
    ORDER BY year DESC, month DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

// GetActiveRateConfig resolves the authoritative configuration for a date.
// The ordering mirrors ResolveRateConfig: latest effective_from wins,
// created_at breaks exact ties, so overlapping active windows still yield a
// single deterministic snapshot.
func (s *Store) GetActiveRateConfig(ctx context.Context, date time.Time) (RateConfig, error) {
	var cfg RateConfig
	var bandsJSON []byte
	err := s.DB.QueryRow(ctx, `
    SELECT id, bands, personal_relief, insurance_relief_rate, insurance_relief_cap,
           disability_exemption, nssf_tier1_limit, nssf_tier1_rate,
           nssf_tier2_limit, nssf_tier2_rate, sha_rate, housing_levy_rate,
           pension_cap, mortgage_interest_cap, effective_from, effective_to,
           active, created_at
    FROM tax_tables
    WHERE active = true
      AND effective_from <= $1
      AND (effective_to IS NULL OR effective_to >= $1)
    ORDER BY effective_from DESC, created_at DESC
    LIMIT 1
  `, date).Scan(
		&cfg.ID, &bandsJSON, &cfg.PersonalRelief, &cfg.InsuranceReliefRate, &cfg.InsuranceReliefCap,
		&cfg.DisabilityExemption, &cfg.NSSFTier1Limit, &cfg.NSSFTier1Rate,
		&cfg.NSSFTier2Limit, &cfg.NSSFTier2Rate, &cfg.SHARate, &cfg.HousingLevyRate,
		&cfg.PensionCap, &cfg.MortgageInterestCap, &cfg.EffectiveFrom, &cfg.EffectiveTo,
		&cfg.Active, &cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RateConfig{}, ErrConfigurationMissing
	}
	if err != nil {
		return RateConfig{}, err
	}
	if err := json.Unmarshal(bandsJSON, &cfg.Bands); err != nil {
		return RateConfig{}, fmt.Errorf("decode tax bands: %w", err)
	}
	return cfg, nil
}

func (s *Store) CreateRateConfig(ctx context.Context, cfg RateConfig) (string, error) {
	bandsJSON, err := json.Marshal(cfg.Bands)
	if err != nil {
		return "", err
	}
	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO tax_tables (
      bands, personal_relief, insurance_relief_rate, insurance_relief_cap,
      disability_exemption, nssf_tier1_limit, nssf_tier1_rate,
      nssf_tier2_limit, nssf_tier2_rate, sha_rate, housing_levy_rate,
      pension_cap, mortgage_interest_cap, effective_from, effective_to, active
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    RETURNING id
  `, bandsJSON, cfg.PersonalRelief, cfg.InsuranceReliefRate, cfg.InsuranceReliefCap,
		cfg.DisabilityExemption, cfg.NSSFTier1Limit, cfg.NSSFTier1Rate,
		cfg.NSSFTier2Limit, cfg.NSSFTier2Rate, cfg.SHARate, cfg.HousingLevyRate,
		cfg.PensionCap, cfg.MortgageInterestCap, cfg.EffectiveFrom, cfg.EffectiveTo, cfg.Active,
	).Scan(&id)
	return id, err
}

// CommitRun writes a whole run atomically: every entry is upserted on
// (period_id, employee_id), the period totals are recomputed inside the
// same transaction as the exact sum over current entries, and the run stamp
// plus status transition land together. Any failure rolls the run back and
// leaves the period untouched.
func (s *Store) CommitRun(ctx context.Context, periodID string, entries []Entry, stamp RunStamp) (Totals, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Totals{}, err
	}
	defer tx.Rollback(ctx)

	for _, entry := range entries {
		if err := upsertEntry(ctx, tx, periodID, entry); err != nil {
			return Totals{}, fmt.Errorf("upsert entry for employee %s: %w", entry.EmployeeID, err)
		}
	}

	var totals Totals
	err = tx.QueryRow(ctx, `
    UPDATE payroll_periods p SET
      total_gross = t.gross,
      total_net = t.net,
      total_paye = t.paye,
      total_nssf = t.nssf,
      total_sha = t.sha,
      total_housing_levy = t.housing_levy,
      status = $2,
      prepared_by = $3,
      prepared_at = $4
    FROM (
      SELECT COALESCE(SUM(gross_pay), 0) AS gross,
             COALESCE(SUM(net_pay), 0) AS net,
             COALESCE(SUM(paye), 0) AS paye,
             COALESCE(SUM(nssf), 0) AS nssf,
             COALESCE(SUM(sha), 0) AS sha,
             COALESCE(SUM(housing_levy), 0) AS housing_levy
      FROM payroll_entries
      WHERE period_id = $1
    ) t
    WHERE p.id = $1
    RETURNING t.gross, t.net, t.paye, t.nssf, t.sha, t.housing_levy
  `, periodID, stamp.Status, stamp.PreparedBy, stamp.PreparedAt).Scan(
		&totals.Gross, &totals.Net, &totals.PAYE, &totals.NSSF, &totals.SHA, &totals.HousingLevy,
	)
	if err != nil {
		return Totals{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Totals{}, err
	}
	return totals, nil
}

func upsertEntry(ctx context.Context, tx pgx.Tx, periodID string, entry Entry) error {
	allowanceJSON, err := json.Marshal(entry.AllowanceDetails)
	if err != nil {
		return err
	}
	deductionJSON, err := json.Marshal(entry.DeductionDetails)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO payroll_entries (
      period_id, employee_id,
      basic_salary, taxable_allowances, non_taxable_allowances, gross_pay,
      pension_contribution, pension_deductible, mortgage_interest, mortgage_deductible,
      taxable_income, tax_charged, personal_relief, insurance_relief, disability_exemption, paye,
      nssf, sha, housing_levy,
      loan_deductions, sacco_deductions, other_deductions,
      total_deductions, net_pay,
      allowance_details, deduction_details
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
    ON CONFLICT (period_id, employee_id) DO UPDATE SET
      basic_salary = EXCLUDED.basic_salary,
      taxable_allowances = EXCLUDED.taxable_allowances,
      non_taxable_allowances = EXCLUDED.non_taxable_allowances,
      gross_pay = EXCLUDED.gross_pay,
      pension_contribution = EXCLUDED.pension_contribution,
      pension_deductible = EXCLUDED.pension_deductible,
      mortgage_interest = EXCLUDED.mortgage_interest,
      mortgage_deductible = EXCLUDED.mortgage_deductible,
      taxable_income = EXCLUDED.taxable_income,
      tax_charged = EXCLUDED.tax_charged,
      personal_relief = EXCLUDED.personal_relief,
      insurance_relief = EXCLUDED.insurance_relief,
      disability_exemption = EXCLUDED.disability_exemption,
      paye = EXCLUDED.paye,
      nssf = EXCLUDED.nssf,
      sha = EXCLUDED.sha,
      housing_levy = EXCLUDED.housing_levy,
      loan_deductions = EXCLUDED.loan_deductions,
      sacco_deductions = EXCLUDED.sacco_deductions,
      other_deductions = EXCLUDED.other_deductions,
      total_deductions = EXCLUDED.total_deductions,
      net_pay = EXCLUDED.net_pay,
      allowance_details = EXCLUDED.allowance_details,
      deduction_details = EXCLUDED.deduction_details,
      updated_at = now()
  `, periodID, entry.EmployeeID,
		entry.BasicSalary, entry.TaxableAllowances, entry.NonTaxableAllowances, entry.GrossPay,
		entry.PensionContribution, entry.PensionDeductible, entry.MortgageInterest, entry.MortgageDeductible,
		entry.TaxableIncome, entry.TaxCharged, entry.PersonalRelief, entry.InsuranceRelief, entry.DisabilityExemption, entry.PAYE,
		entry.NSSF, entry.SHA, entry.HousingLevy,
		entry.LoanDeductions, entry.SaccoDeductions, entry.OtherDeductions,
		entry.TotalDeductions, entry.NetPay,
		allowanceJSON, deductionJSON,
	)
	return err
}

func (s *Store) SaveStatus(ctx context.Context, periodID string, update StatusUpdate) error {
	switch {
	case update.ClearApprovals:
		_, err := s.DB.Exec(ctx, `
      UPDATE payroll_periods SET
        status = $2,
        hr_approved_by = NULL,
        hr_approved_at = NULL,
        mgmt_approved_by = NULL,
        mgmt_approved_at = NULL,
        hr_comments = CASE WHEN COALESCE(hr_comments, '') = '' THEN $3
                           ELSE hr_comments || E'\n\n' || $3 END
      WHERE id = $1
    `, periodID, update.Status, update.AppendComment)
		return err
	case update.HRApprovedAt != nil:
		_, err := s.DB.Exec(ctx, `
      UPDATE payroll_periods SET
        status = $2, hr_approved_by = $3, hr_approved_at = $4, hr_comments = $5
      WHERE id = $1
    `, periodID, update.Status, update.HRApprovedBy, update.HRApprovedAt, update.HRComments)
		return err
	case update.MgmtApprovedAt != nil:
		_, err := s.DB.Exec(ctx, `
      UPDATE payroll_periods SET
        status = $2, mgmt_approved_by = $3, mgmt_approved_at = $4, mgmt_comments = $5
      WHERE id = $1
    `, periodID, update.Status, update.MgmtApprovedBy, update.MgmtApprovedAt, update.MgmtComments)
		return err
	case update.PaymentDate != nil:
		_, err := s.DB.Exec(ctx, `
      UPDATE payroll_periods SET status = $2, payment_date = $3 WHERE id = $1
    `, periodID, update.Status, update.PaymentDate)
		return err
	default:
		_, err := s.DB.Exec(ctx, `
      UPDATE payroll_periods SET status = $2 WHERE id = $1
    `, periodID, update.Status)
		return err
	}
}

const entryColumns = `
    id, period_id, employee_id,
    basic_salary, taxable_allowances, non_taxable_allowances, gross_pay,
    pension_contribution, pension_deductible, mortgage_interest, mortgage_deductible,
    taxable_income, tax_charged, personal_relief, insurance_relief, disability_exemption, paye,
    nssf, sha, housing_levy,
    loan_deductions, sacco_deductions, other_deductions,
    total_deductions, net_pay,
    allowance_details, deduction_details, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var allowanceJSON, deductionJSON []byte
	err := row.Scan(
		&entry.ID, &entry.PeriodID, &entry.EmployeeID,
		&entry.BasicSalary, &entry.TaxableAllowances, &entry.NonTaxableAllowances, &entry.GrossPay,
		&entry.PensionContribution, &entry.PensionDeductible, &entry.MortgageInterest, &entry.MortgageDeductible,
		&entry.TaxableIncome, &entry.TaxCharged, &entry.PersonalRelief, &entry.InsuranceRelief, &entry.DisabilityExemption, &entry.PAYE,
		&entry.NSSF, &entry.SHA, &entry.HousingLevy,
		&entry.LoanDeductions, &entry.SaccoDeductions, &entry.OtherDeductions,
		&entry.TotalDeductions, &entry.NetPay,
		&allowanceJSON, &deductionJSON, &entry.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal(allowanceJSON, &entry.AllowanceDetails); err != nil {
		return Entry{}, fmt.Errorf("decode allowance details: %w", err)
	}
	if err := json.Unmarshal(deductionJSON, &entry.DeductionDetails); err != nil {
		return Entry{}, fmt.Errorf("decode deduction details: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, periodID string) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+entryColumns+`
    FROM payroll_entries
    WHERE period_id = $1
    ORDER BY employee_id
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RegisterRow is one line of the payroll register: the statutory figures
// alongside the identity columns an auditor reads them by.
type RegisterRow struct {
	EmployeeID      string
	EmployeeNumber  string
	FirstName       string
	LastName        string
	GrossPay        decimal.Decimal
	PAYE            decimal.Decimal
	NSSF            decimal.Decimal
	SHA             decimal.Decimal
	HousingLevy     decimal.Decimal
	TotalDeductions decimal.Decimal
	NetPay          decimal.Decimal
}

func (s *Store) ListRegister(ctx context.Context, periodID string) ([]RegisterRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT e.employee_id, COALESCE(emp.employee_number, ''), emp.first_name, emp.last_name,
           e.gross_pay, e.paye, e.nssf, e.sha, e.housing_levy, e.total_deductions, e.net_pay
    FROM payroll_entries e
    JOIN employees emp ON emp.id = e.employee_id
    WHERE e.period_id = $1
    ORDER BY emp.employee_number, emp.last_name, emp.first_name
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var register []RegisterRow
	for rows.Next() {
		var row RegisterRow
		if err := rows.Scan(
			&row.EmployeeID, &row.EmployeeNumber, &row.FirstName, &row.LastName,
			&row.GrossPay, &row.PAYE, &row.NSSF, &row.SHA, &row.HousingLevy,
			&row.TotalDeductions, &row.NetPay,
		); err != nil {
			return nil, err
		}
		register = append(register, row)
	}
	return register, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, periodID, employeeID string) (Entry, error) {
	return scanEntry(s.DB.QueryRow(ctx, `
    SELECT`+entryColumns+`
    FROM payroll_entries
    WHERE period_id = $1 AND employee_id = $2
  `, periodID, employeeID))
}
