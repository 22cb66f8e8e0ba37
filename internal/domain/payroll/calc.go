package payroll

import "github.com/shopspring/decimal"

// round2 quantizes to two decimal places with ties away from zero, the
// rounding the statutory tables are published against. Applied after every
// multiplication so band and tier amounts accumulate exactly as gazetted.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute maps one employee's compensation inputs and a rate snapshot to an
// itemized pay result. It is pure and total: no I/O, no state, and every
// numerically valid input yields a result. Negative-amount screening happens
// upstream in the processor.
func Compute(input CompensationInput, cfg RateConfig) Result {
	taxableAllowances := decimal.Zero
	nonTaxableAllowances := decimal.Zero
	allowanceDetails := make([]AllowanceItem, 0, len(input.Allowances))
	for _, item := range input.Allowances {
		if item.Taxable {
			taxableAllowances = taxableAllowances.Add(item.Amount)
		} else {
			nonTaxableAllowances = nonTaxableAllowances.Add(item.Amount)
		}
		allowanceDetails = append(allowanceDetails, item)
	}

	grossPay := input.BasicSalary.Add(taxableAllowances).Add(nonTaxableAllowances)

	nssf := computeNSSF(grossPay, cfg)

	pensionDeductible := decimal.Min(input.PensionContribution, cfg.PensionCap)
	mortgageDeductible := decimal.Min(input.MortgageInterest, cfg.MortgageInterestCap)

	taxableIncome := grossPay.Sub(nssf).Sub(pensionDeductible).Sub(mortgageDeductible)
	if taxableIncome.IsNegative() {
		taxableIncome = decimal.Zero
	}

	taxCharged := computeTax(taxableIncome, cfg.Bands)

	insuranceRelief := decimal.Min(round2(input.InsurancePremium.Mul(cfg.InsuranceReliefRate)), cfg.InsuranceReliefCap)
	disabilityExemption := decimal.Zero
	if input.HasDisability {
		disabilityExemption = cfg.DisabilityExemption
	}
	totalRelief := cfg.PersonalRelief.Add(insuranceRelief).Add(disabilityExemption)

	paye := taxCharged.Sub(totalRelief)
	if paye.IsNegative() {
		paye = decimal.Zero
	}
	paye = round2(paye)

	// SHA and the housing levy are flat percentages of gross, independent
	// of taxable income. Zero gross yields zero, never an error.
	sha := round2(grossPay.Mul(cfg.SHARate))
	housingLevy := round2(grossPay.Mul(cfg.HousingLevyRate))

	loanDeductions := decimal.Zero
	saccoDeductions := decimal.Zero
	otherDeductions := decimal.Zero
	deductionDetails := make([]DeductionItem, 0, len(input.Deductions))
	for _, item := range input.Deductions {
		switch item.Category {
		case DeductionLoan:
			loanDeductions = loanDeductions.Add(item.Amount)
		case DeductionSacco:
			saccoDeductions = saccoDeductions.Add(item.Amount)
		default:
			otherDeductions = otherDeductions.Add(item.Amount)
		}
		deductionDetails = append(deductionDetails, item)
	}

	totalDeductions := paye.
		Add(nssf).
		Add(sha).
		Add(housingLevy).
		Add(loanDeductions).
		Add(saccoDeductions).
		Add(otherDeductions)

	// Net pay is deliberately not floored: a negative net signals
	// over-deduction and must reach the caller intact.
	netPay := round2(grossPay.Sub(totalDeductions))

	return Result{
		BasicSalary:          round2(input.BasicSalary),
		TaxableAllowances:    round2(taxableAllowances),
		NonTaxableAllowances: round2(nonTaxableAllowances),
		GrossPay:             round2(grossPay),
		PensionContribution:  round2(input.PensionContribution),
		PensionDeductible:    round2(pensionDeductible),
		MortgageInterest:     round2(input.MortgageInterest),
		MortgageDeductible:   round2(mortgageDeductible),
		TaxableIncome:        round2(taxableIncome),
		TaxCharged:           round2(taxCharged),
		PersonalRelief:       round2(cfg.PersonalRelief),
		InsuranceRelief:      round2(insuranceRelief),
		DisabilityExemption:  round2(disabilityExemption),
		PAYE:                 paye,
		NSSF:                 nssf,
		SHA:                  sha,
		HousingLevy:          housingLevy,
		LoanDeductions:       round2(loanDeductions),
		SaccoDeductions:      round2(saccoDeductions),
		OtherDeductions:      round2(otherDeductions),
		TotalDeductions:      round2(totalDeductions),
		NetPay:               netPay,
		AllowanceDetails:     allowanceDetails,
		DeductionDetails:     deductionDetails,
	}
}

// computeNSSF applies the two-tier contribution: tier I on gross up to the
// first limit, tier II on the slice between the limits. Each tier is rounded
// before summing, so the capped total is stable for any gross above tier II.
func computeNSSF(grossPay decimal.Decimal, cfg RateConfig) decimal.Decimal {
	tier1 := round2(decimal.Min(grossPay, cfg.NSSFTier1Limit).Mul(cfg.NSSFTier1Rate))

	tier2 := decimal.Zero
	if grossPay.GreaterThan(cfg.NSSFTier1Limit) {
		pensionable := decimal.Min(grossPay, cfg.NSSFTier2Limit).Sub(cfg.NSSFTier1Limit)
		tier2 = round2(pensionable.Mul(cfg.NSSFTier2Rate))
	}

	return tier1.Add(tier2)
}

// computeTax walks the ordered bands from the lowest, consuming income band
// by band. Band tax is rounded before accumulating. The final band has
// unbounded width, so arbitrarily large incomes tax the remainder at the top
// rate without overflow.
func computeTax(taxableIncome decimal.Decimal, bands []TaxBand) decimal.Decimal {
	if !taxableIncome.IsPositive() {
		return decimal.Zero
	}

	tax := decimal.Zero
	remaining := taxableIncome
	previousLimit := decimal.Zero

	for i, band := range bands {
		if !remaining.IsPositive() {
			break
		}
		bandIncome := remaining
		if i < len(bands)-1 {
			bandIncome = decimal.Min(remaining, band.UpperLimit.Sub(previousLimit))
			previousLimit = band.UpperLimit
		}
		tax = tax.Add(round2(bandIncome.Mul(band.Rate)))
		remaining = remaining.Sub(bandIncome)
	}

	return tax
}
