package payrollhandler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Migiro-Johans/HRS/internal/domain/payroll"
	"github.com/Migiro-Johans/HRS/internal/platform/jobs"
	"github.com/Migiro-Johans/HRS/internal/transport/http/api"
	"github.com/Migiro-Johans/HRS/internal/transport/http/middleware"
	"github.com/Migiro-Johans/HRS/internal/transport/http/shared"
)

type Handler struct {
	Store     *payroll.Store
	Processor *payroll.Processor
	Payslips  *payroll.PayslipService
	Jobs      *jobs.Service
}

func NewHandler(store *payroll.Store, processor *payroll.Processor, payslips *payroll.PayslipService, jobService *jobs.Service) *Handler {
	return &Handler{Store: store, Processor: processor, Payslips: payslips, Jobs: jobService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Get("/periods", h.handleListPeriods)
		r.Post("/periods", h.handleCreatePeriod)
		r.Get("/periods/{periodID}", h.handleGetPeriod)
		r.Get("/periods/{periodID}/entries", h.handleListEntries)
		r.Get("/periods/{periodID}/entries/{employeeID}", h.handleGetEntry)
		r.Post("/periods/{periodID}/process", h.handleProcess)
		r.Post("/periods/{periodID}/approve-hr", h.handleApproveHR)
		r.Post("/periods/{periodID}/approve-management", h.handleApproveManagement)
		r.Post("/periods/{periodID}/reject", h.handleReject)
		r.Post("/periods/{periodID}/mark-paid", h.handleMarkPaid)
		r.Get("/periods/{periodID}/export/register", h.handleExportRegister)
		r.Post("/periods/{periodID}/payslips", h.handleGeneratePayslips)
		r.Get("/periods/{periodID}/payslips/{employeeID}", h.handleDownloadPayslip)
		r.Post("/tax-tables", h.handleCreateRateConfig)
		r.Get("/tax-tables/active", h.handleActiveRateConfig)
	})
}

// actor identifies the human driving a workflow action. Authentication
// happens upstream; the gateway forwards the verified identity here.
func actor(r *http.Request) string {
	if who := middleware.GetActor(r.Context()); who != "" {
		return who
	}
	return strings.TrimSpace(r.Header.Get("X-Actor"))
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	who := actor(r)
	if who == "" {
		api.Fail(w, http.StatusBadRequest, "actor_required", "X-Actor header is required", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return who, true
}

// failPayroll translates domain errors into envelope codes so callers can
// distinguish a bad transition from a missing configuration or a broken
// employee record.
func failPayroll(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMsg string) {
	requestID := middleware.GetRequestID(r.Context())
	var procErr *payroll.EmployeeProcessingError
	switch {
	case errors.Is(err, payroll.ErrPeriodNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "payroll period not found", requestID)
	case errors.Is(err, payroll.ErrInvalidStateTransition):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payroll.ErrConfigurationMissing):
		api.Fail(w, http.StatusUnprocessableEntity, "configuration_missing", "no active statutory configuration covers the period", requestID)
	case errors.As(err, &procErr):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "employee_processing_failed", procErr.Error(),
			map[string]any{"employeeId": procErr.EmployeeID}, requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMsg, requestID)
	}
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	periods, err := h.Store.ListPeriods(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "periods_list_failed", "failed to list periods", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	if payload.Year < 2000 || payload.Year > 2200 {
		v.Add("year", "must be a four-digit year")
	}
	if payload.Month < 1 || payload.Month > 12 {
		v.Add("month", "must be between 1 and 12")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	period, err := h.Store.CreatePeriod(r.Context(), payload.Year, payload.Month)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			api.Fail(w, http.StatusConflict, "period_exists", "a period for that year and month already exists", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "period_create_failed", "failed to create period", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.Store.GetPeriod(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		failPayroll(w, r, err, "period_get_failed", "failed to load period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	if _, err := h.Store.GetPeriod(r.Context(), periodID); err != nil {
		failPayroll(w, r, err, "entries_list_failed", "failed to list entries")
		return
	}
	entries, err := h.Store.ListEntries(r.Context(), periodID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "entries_list_failed", "failed to list entries", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Store.GetEntry(r.Context(), chi.URLParam(r, "periodID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll entry not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	period, err := h.Processor.ProcessAll(r.Context(), chi.URLParam(r, "periodID"), who)
	if err != nil {
		failPayroll(w, r, err, "process_failed", "failed to process period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

type approvalPayload struct {
	Comments string `json:"comments"`
}

func decodeApproval(r *http.Request) approvalPayload {
	var payload approvalPayload
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			// Approval bodies are optional.
			payload = approvalPayload{}
		}
	}
	return payload
}

func (h *Handler) handleApproveHR(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	payload := decodeApproval(r)
	period, err := h.Processor.ApproveHR(r.Context(), chi.URLParam(r, "periodID"), who, payload.Comments)
	if err != nil {
		failPayroll(w, r, err, "approve_failed", "failed to approve period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveManagement(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	payload := decodeApproval(r)
	period, err := h.Processor.ApproveManagement(r.Context(), chi.URLParam(r, "periodID"), who, payload.Comments)
	if err != nil {
		failPayroll(w, r, err, "approve_failed", "failed to approve period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Comments string `json:"comments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.Comments) == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "rejection comments required", middleware.GetRequestID(r.Context()))
		return
	}
	period, err := h.Processor.Reject(r.Context(), chi.URLParam(r, "periodID"), who, payload.Comments)
	if err != nil {
		failPayroll(w, r, err, "reject_failed", "failed to reject period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	who, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload struct {
		PaymentDate string `json:"paymentDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	paymentDate, _ := v.Date("paymentDate", payload.PaymentDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	periodID := chi.URLParam(r, "periodID")
	period, err := h.Processor.MarkPaid(r.Context(), periodID, who, paymentDate)
	if err != nil {
		failPayroll(w, r, err, "mark_paid_failed", "failed to mark period paid")
		return
	}

	// Payslips for the whole period render in the background once the
	// period is paid; individual downloads still render on demand.
	if h.Jobs != nil {
		h.Jobs.Enqueue(jobs.JobPayslipBatch, func(ctx context.Context) (any, error) {
			generated, err := h.Payslips.GenerateAll(ctx, periodID)
			return map[string]any{"periodId": periodID, "generated": generated}, err
		})
	}

	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	if _, err := h.Store.GetPeriod(r.Context(), periodID); err != nil {
		failPayroll(w, r, err, "export_failed", "failed to export register")
		return
	}
	register, err := h.Store.ListRegister(r.Context(), periodID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export register", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=payroll-register.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"employee_number", "first_name", "last_name", "gross_pay", "paye", "nssf", "sha", "housing_levy", "total_deductions", "net_pay"}); err != nil {
		log.Printf("export register header write failed: %v", err)
	}
	for _, line := range register {
		row := []string{
			line.EmployeeNumber,
			line.FirstName,
			line.LastName,
			line.GrossPay.StringFixed(2),
			line.PAYE.StringFixed(2),
			line.NSSF.StringFixed(2),
			line.SHA.StringFixed(2),
			line.HousingLevy.StringFixed(2),
			line.TotalDeductions.StringFixed(2),
			line.NetPay.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			log.Printf("export register row write failed: %v", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Printf("export register flush failed: %v", err)
	}
}

// handleGeneratePayslips re-renders the whole period's payslips on demand.
// It runs the same batch that mark-paid schedules in the background, but
// synchronously, so the caller sees the count and any failure directly.
func (h *Handler) handleGeneratePayslips(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	if _, err := h.Store.GetPeriod(r.Context(), periodID); err != nil {
		failPayroll(w, r, err, "payslips_failed", "failed to generate payslips")
		return
	}

	run := func(ctx context.Context) (any, error) {
		generated, err := h.Payslips.GenerateAll(ctx, periodID)
		return map[string]any{"periodId": periodID, "generated": generated}, err
	}

	var details any
	var err error
	if h.Jobs != nil {
		details, err = h.Jobs.RunNow(r.Context(), jobs.JobPayslipBatch, run)
	} else {
		details, err = run(r.Context())
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslips_failed", "failed to generate payslips", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	employeeID := chi.URLParam(r, "employeeID")

	filePath, err := h.Payslips.Generate(r.Context(), periodID, employeeID)
	if err != nil {
		if errors.Is(err, payroll.ErrPeriodNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "payroll period not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusNotFound, "payslip_missing", "payslip not available", middleware.GetRequestID(r.Context()))
		return
	}
	http.ServeFile(w, r, filePath)
}

type rateConfigPayload struct {
	Bands               []payroll.TaxBand `json:"bands"`
	PersonalRelief      string            `json:"personalRelief"`
	InsuranceReliefRate string            `json:"insuranceReliefRate"`
	InsuranceReliefCap  string            `json:"insuranceReliefCap"`
	DisabilityExemption string            `json:"disabilityExemption"`
	NSSFTier1Limit      string            `json:"nssfTier1Limit"`
	NSSFTier1Rate       string            `json:"nssfTier1Rate"`
	NSSFTier2Limit      string            `json:"nssfTier2Limit"`
	NSSFTier2Rate       string            `json:"nssfTier2Rate"`
	SHARate             string            `json:"shaRate"`
	HousingLevyRate     string            `json:"housingLevyRate"`
	PensionCap          string            `json:"pensionCap"`
	MortgageInterestCap string            `json:"mortgageInterestCap"`
	EffectiveFrom       string            `json:"effectiveFrom"`
	EffectiveTo         string            `json:"effectiveTo"`
	Active              *bool             `json:"active"`
}

func (h *Handler) handleCreateRateConfig(w http.ResponseWriter, r *http.Request) {
	var payload rateConfigPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	if len(payload.Bands) == 0 {
		v.Add("bands", "at least one tax band is required")
	}
	cfg := payroll.RateConfig{Bands: payload.Bands, Active: true}
	if payload.Active != nil {
		cfg.Active = *payload.Active
	}

	cfg.PersonalRelief = v.Amount("personalRelief", payload.PersonalRelief)
	cfg.InsuranceReliefRate = v.Amount("insuranceReliefRate", payload.InsuranceReliefRate)
	cfg.InsuranceReliefCap = v.Amount("insuranceReliefCap", payload.InsuranceReliefCap)
	cfg.DisabilityExemption = v.Amount("disabilityExemption", payload.DisabilityExemption)
	cfg.NSSFTier1Limit = v.Amount("nssfTier1Limit", payload.NSSFTier1Limit)
	cfg.NSSFTier1Rate = v.Amount("nssfTier1Rate", payload.NSSFTier1Rate)
	cfg.NSSFTier2Limit = v.Amount("nssfTier2Limit", payload.NSSFTier2Limit)
	cfg.NSSFTier2Rate = v.Amount("nssfTier2Rate", payload.NSSFTier2Rate)
	cfg.SHARate = v.Amount("shaRate", payload.SHARate)
	cfg.HousingLevyRate = v.Amount("housingLevyRate", payload.HousingLevyRate)
	cfg.PensionCap = v.Amount("pensionCap", payload.PensionCap)
	cfg.MortgageInterestCap = v.Amount("mortgageInterestCap", payload.MortgageInterestCap)

	effectiveFrom, okFrom := v.Date("effectiveFrom", payload.EffectiveFrom)
	if okFrom {
		cfg.EffectiveFrom = effectiveFrom
	}
	if strings.TrimSpace(payload.EffectiveTo) != "" {
		effectiveTo, okTo := v.Date("effectiveTo", payload.EffectiveTo)
		if okTo {
			cfg.EffectiveTo = &effectiveTo
			v.DateOrder("effectiveFrom", cfg.EffectiveFrom, "effectiveTo", effectiveTo)
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Store.CreateRateConfig(r.Context(), cfg)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rate_config_create_failed", "failed to create configuration", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActiveRateConfig(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	date, err := shared.ParseDate(raw)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid date", middleware.GetRequestID(r.Context()))
		return
	}
	if date.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "date query parameter is required", middleware.GetRequestID(r.Context()))
		return
	}

	cfg, err := h.Store.GetActiveRateConfig(r.Context(), date)
	if err != nil {
		if errors.Is(err, payroll.ErrConfigurationMissing) {
			api.Fail(w, http.StatusNotFound, "configuration_missing", fmt.Sprintf("no active configuration covers %s", raw), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "rate_config_get_failed", "failed to load configuration", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cfg, middleware.GetRequestID(r.Context()))
}
