package payroll

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// PayslipService renders a committed entry as a PDF payslip.
type PayslipService struct {
	store *Store
	dir   string
}

func NewPayslipService(store *Store, dir string) *PayslipService {
	return &PayslipService{store: store, dir: dir}
}

func (s *PayslipService) Generate(ctx context.Context, periodID, employeeID string) (string, error) {
	entry, err := s.store.GetEntry(ctx, periodID, employeeID)
	if err != nil {
		return "", err
	}

	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return "", err
	}

	var firstName, lastName, employeeNumber string
	err = s.store.DB.QueryRow(ctx, `
    SELECT first_name, last_name, COALESCE(employee_number, '')
    FROM employees
    WHERE id = $1
  `, employeeID).Scan(&firstName, &lastName, &employeeNumber)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(s.dir, fmt.Sprintf("%d-%02d-%s.pdf", period.Year, period.Month, employeeID))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s (%s)", firstName, lastName, employeeNumber))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", period.Name))
	pdf.Ln(10)

	line := func(label string, amount decimal.Decimal) {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %s", label, amount.StringFixed(2)))
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Earnings")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	line("Basic Salary", entry.BasicSalary)
	for _, item := range entry.AllowanceDetails {
		line(item.Name, item.Amount)
	}
	line("Gross Pay", entry.GrossPay)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Deductions")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	line("PAYE", entry.PAYE)
	line("NSSF", entry.NSSF)
	line("SHA", entry.SHA)
	line("Housing Levy", entry.HousingLevy)
	for _, item := range entry.DeductionDetails {
		line(item.Name, item.Amount)
	}
	line("Total Deductions", entry.TotalDeductions)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	line("Net Pay", entry.NetPay)

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// GenerateAll renders one payslip per committed entry in a period and
// returns how many succeeded. Individual failures do not stop the batch.
func (s *PayslipService) GenerateAll(ctx context.Context, periodID string) (int, error) {
	entries, err := s.store.ListEntries(ctx, periodID)
	if err != nil {
		return 0, err
	}

	generated := 0
	var lastErr error
	for _, entry := range entries {
		if _, err := s.Generate(ctx, periodID, entry.EmployeeID); err != nil {
			lastErr = fmt.Errorf("payslip for employee %s: %w", entry.EmployeeID, err)
			continue
		}
		generated++
	}
	if generated == 0 && lastErr != nil {
		return 0, lastErr
	}
	return generated, nil
}
