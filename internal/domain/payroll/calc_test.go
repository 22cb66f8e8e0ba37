package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeNSSFTiers(t *testing.T) {
	cfg := DefaultRateConfig()

	cases := []struct {
		name  string
		gross string
		want  string
	}{
		{"below tier 1 limit", "5000", "300"},
		{"at tier 1 limit", "7000", "420"},
		{"at tier 2 limit", "36000", "2160"},
		{"above tier 2 limit caps", "100000", "2160"},
		{"zero gross", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeNSSF(dec(tc.gross), cfg)
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected nssf %s for gross %s, got %s", tc.want, tc.gross, got)
			}
		})
	}
}

func TestComputeTaxBands(t *testing.T) {
	cfg := DefaultRateConfig()

	cases := []struct {
		name    string
		taxable string
		want    string
	}{
		{"zero income", "0", "0"},
		{"single band", "20000", "2000"},
		{"two bands", "30000", "3900"},
		// 2400 + 2083.25 + 140300.10 + 97500 + 70000
		{"top band remainder", "1000000", "312283.35"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeTax(dec(tc.taxable), cfg.Bands)
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected tax %s for taxable %s, got %s", tc.want, tc.taxable, got)
			}
		})
	}
}

func TestComputeLevies(t *testing.T) {
	result := Compute(CompensationInput{BasicSalary: dec("50000")}, DefaultRateConfig())

	if !result.SHA.Equal(dec("1375")) {
		t.Fatalf("expected sha 1375, got %s", result.SHA)
	}
	if !result.HousingLevy.Equal(dec("750")) {
		t.Fatalf("expected housing levy 750, got %s", result.HousingLevy)
	}
}

func TestComputeZeroSalary(t *testing.T) {
	result := Compute(CompensationInput{}, DefaultRateConfig())

	zeros := map[string]decimal.Decimal{
		"gross":           result.GrossPay,
		"taxable income":  result.TaxableIncome,
		"paye":            result.PAYE,
		"nssf":            result.NSSF,
		"sha":             result.SHA,
		"housing levy":    result.HousingLevy,
		"total deduction": result.TotalDeductions,
		"net pay":         result.NetPay,
	}
	for field, value := range zeros {
		if !value.IsZero() {
			t.Fatalf("expected zero %s, got %s", field, value)
		}
	}
}

func TestComputeAllowanceSplit(t *testing.T) {
	input := CompensationInput{
		BasicSalary: dec("40000"),
		Allowances: []AllowanceItem{
			{Name: "House Allowance", Amount: dec("10000"), Taxable: true},
			{Name: "Lunch Allowance", Amount: dec("3000"), Taxable: false},
		},
	}
	result := Compute(input, DefaultRateConfig())

	if !result.TaxableAllowances.Equal(dec("10000")) {
		t.Fatalf("expected taxable allowances 10000, got %s", result.TaxableAllowances)
	}
	if !result.NonTaxableAllowances.Equal(dec("3000")) {
		t.Fatalf("expected non-taxable allowances 3000, got %s", result.NonTaxableAllowances)
	}
	if !result.GrossPay.Equal(dec("53000")) {
		t.Fatalf("expected gross 53000, got %s", result.GrossPay)
	}
	if len(result.AllowanceDetails) != 2 {
		t.Fatalf("expected 2 allowance detail items, got %d", len(result.AllowanceDetails))
	}
}

func TestComputePensionReducesTaxable(t *testing.T) {
	input := CompensationInput{
		BasicSalary:         dec("53000"),
		PensionContribution: dec("1080"),
	}
	result := Compute(input, DefaultRateConfig())

	if !result.NSSF.Equal(dec("2160")) {
		t.Fatalf("expected nssf 2160, got %s", result.NSSF)
	}
	if !result.PensionDeductible.Equal(dec("1080")) {
		t.Fatalf("expected pension deductible 1080, got %s", result.PensionDeductible)
	}
	if !result.TaxableIncome.Equal(dec("49760")) {
		t.Fatalf("expected taxable income 49760, got %s", result.TaxableIncome)
	}
	if !result.PersonalRelief.Equal(dec("2400")) {
		t.Fatalf("expected personal relief 2400, got %s", result.PersonalRelief)
	}
}

func TestComputePensionCap(t *testing.T) {
	input := CompensationInput{
		BasicSalary:         dec("100000"),
		PensionContribution: dec("30000"),
	}
	result := Compute(input, DefaultRateConfig())

	if !result.PensionDeductible.Equal(dec("20000")) {
		t.Fatalf("expected pension capped at 20000, got %s", result.PensionDeductible)
	}
	if !result.PensionContribution.Equal(dec("30000")) {
		t.Fatalf("expected raw pension contribution preserved, got %s", result.PensionContribution)
	}
}

func TestComputeMortgageCap(t *testing.T) {
	input := CompensationInput{
		BasicSalary:      dec("200000"),
		MortgageInterest: dec("40000"),
	}
	result := Compute(input, DefaultRateConfig())

	if !result.MortgageDeductible.Equal(dec("25000")) {
		t.Fatalf("expected mortgage deductible capped at 25000, got %s", result.MortgageDeductible)
	}
}

func TestComputeInsuranceReliefCap(t *testing.T) {
	input := CompensationInput{
		BasicSalary:      dec("50000"),
		InsurancePremium: dec("50000"),
	}
	result := Compute(input, DefaultRateConfig())

	// 15% of 50000 is 7500; the cap clamps it, it does not error.
	if !result.InsuranceRelief.Equal(dec("5000")) {
		t.Fatalf("expected insurance relief capped at 5000, got %s", result.InsuranceRelief)
	}
}

func TestComputeDisabilityExemption(t *testing.T) {
	cfg := DefaultRateConfig()
	base := CompensationInput{BasicSalary: dec("50000")}

	plain := Compute(base, cfg)
	disabled := base
	disabled.HasDisability = true
	exempt := Compute(disabled, cfg)

	if !exempt.PAYE.IsZero() {
		t.Fatalf("expected zero paye with disability exemption, got %s", exempt.PAYE)
	}
	if !exempt.NetPay.GreaterThan(plain.NetPay) {
		t.Fatalf("expected disabled net %s to exceed plain net %s", exempt.NetPay, plain.NetPay)
	}
}

func TestComputePAYENeverNegative(t *testing.T) {
	// Tax charged on a small income is below total relief.
	result := Compute(CompensationInput{BasicSalary: dec("10000")}, DefaultRateConfig())
	if result.PAYE.IsNegative() {
		t.Fatalf("expected non-negative paye, got %s", result.PAYE)
	}
	if !result.PAYE.IsZero() {
		t.Fatalf("expected zero paye when relief exceeds tax, got %s", result.PAYE)
	}
}

func TestComputeDeductionBuckets(t *testing.T) {
	input := CompensationInput{
		BasicSalary: dec("80000"),
		Deductions: []DeductionItem{
			{Name: "Car Loan", Amount: dec("5000"), Category: DeductionLoan},
			{Name: "Sacco Savings", Amount: dec("3000"), Category: DeductionSacco},
			{Name: "Welfare", Amount: dec("1000"), Category: DeductionOther},
			{Name: "Salary Advance", Amount: dec("2000"), Category: DeductionOther},
		},
	}
	result := Compute(input, DefaultRateConfig())

	if !result.LoanDeductions.Equal(dec("5000")) {
		t.Fatalf("expected loan deductions 5000, got %s", result.LoanDeductions)
	}
	if !result.SaccoDeductions.Equal(dec("3000")) {
		t.Fatalf("expected sacco deductions 3000, got %s", result.SaccoDeductions)
	}
	if !result.OtherDeductions.Equal(dec("3000")) {
		t.Fatalf("expected other deductions 3000, got %s", result.OtherDeductions)
	}

	want := result.PAYE.Add(result.NSSF).Add(result.SHA).Add(result.HousingLevy).
		Add(dec("5000")).Add(dec("3000")).Add(dec("3000"))
	if !result.TotalDeductions.Equal(want) {
		t.Fatalf("expected total deductions %s, got %s", want, result.TotalDeductions)
	}
}

func TestComputeNegativeNetSurfaced(t *testing.T) {
	input := CompensationInput{
		BasicSalary: dec("10000"),
		Deductions: []DeductionItem{
			{Name: "Car Loan", Amount: dec("20000"), Category: DeductionLoan},
		},
	}
	result := Compute(input, DefaultRateConfig())

	if !result.NetPay.IsNegative() {
		t.Fatalf("expected negative net to be surfaced, got %s", result.NetPay)
	}
}

func TestComputeLargeSalaryTopBand(t *testing.T) {
	result := Compute(CompensationInput{BasicSalary: dec("5000000")}, DefaultRateConfig())

	// taxable = 5000000 - 2160 = 4997840
	// 2400 + 2083.25 + 140300.10 + 97500 + 0.35*(4997840-800000)
	if !result.TaxCharged.Equal(dec("1711527.35")) {
		t.Fatalf("expected tax charged 1711527.35, got %s", result.TaxCharged)
	}
	if !result.NetPay.LessThan(result.GrossPay) {
		t.Fatalf("expected net below gross for large salary")
	}
}
