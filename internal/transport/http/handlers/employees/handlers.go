package employeeshandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Migiro-Johans/HRS/internal/domain/employees"
	"github.com/Migiro-Johans/HRS/internal/transport/http/api"
	"github.com/Migiro-Johans/HRS/internal/transport/http/middleware"
	"github.com/Migiro-Johans/HRS/internal/transport/http/shared"
)

type Handler struct {
	Store *employees.Store
}

func NewHandler(store *employees.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.handleListDepartments)
		r.Post("/", h.handleCreateDepartment)
	})
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleListEmployees)
		r.Post("/", h.handleCreateEmployee)
		r.Get("/{employeeID}", h.handleGetEmployee)
		r.Get("/{employeeID}/allowances", h.handleListAllowances)
		r.Post("/{employeeID}/allowances", h.handleCreateAllowance)
		r.Get("/{employeeID}/deductions", h.handleListDeductions)
		r.Post("/{employeeID}/deductions", h.handleCreateDeduction)
	})
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Store.ListDepartments(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "departments_list_failed", "failed to list departments", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, departments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string `json:"name"`
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Store.CreateDepartment(r.Context(), payload.Name, payload.Code, payload.Description)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_create_failed", "failed to create department", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	list, err := h.Store.ListEmployees(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

var employmentStatuses = []string{
	employees.StatusActive,
	employees.StatusOnLeave,
	employees.StatusSuspended,
	employees.StatusTerminated,
	employees.StatusResigned,
}

type employeePayload struct {
	EmployeeNumber   string `json:"employeeNumber"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	DepartmentID     string `json:"departmentId"`
	JobTitle         string `json:"jobTitle"`
	EmploymentStatus string `json:"employmentStatus"`
	BasicSalary      string `json:"basicSalary"`
	HasDisability    bool   `json:"hasDisability"`
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("firstName", payload.FirstName, "is required")
	v.Required("lastName", payload.LastName, "is required")
	v.Required("email", payload.Email, "is required")
	v.Enum("employmentStatus", payload.EmploymentStatus, employmentStatuses, "is not a valid employment status")
	salary := v.Amount("basicSalary", payload.BasicSalary)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	status := strings.TrimSpace(payload.EmploymentStatus)
	if status == "" {
		status = employees.StatusActive
	}

	id, err := h.Store.CreateEmployee(r.Context(), employees.Employee{
		EmployeeNumber:   payload.EmployeeNumber,
		FirstName:        payload.FirstName,
		LastName:         payload.LastName,
		Email:            payload.Email,
		DepartmentID:     payload.DepartmentID,
		JobTitle:         payload.JobTitle,
		EmploymentStatus: status,
		BasicSalary:      salary,
		HasDisability:    payload.HasDisability,
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			api.Fail(w, http.StatusConflict, "employee_exists", "an employee with that email or number already exists", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func asOfDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return shared.Today(), nil
	}
	return shared.ParseDate(raw)
}

func (h *Handler) handleListAllowances(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfDate(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid asOf date", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Store.AllowancesFor(r.Context(), chi.URLParam(r, "employeeID"), asOf)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "allowances_list_failed", "failed to list allowances", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

var allowanceKinds = []string{
	employees.AllowanceHouse,
	employees.AllowanceTransport,
	employees.AllowanceMedical,
	employees.AllowanceAirtime,
	employees.AllowanceLunch,
	employees.AllowanceHardship,
	employees.AllowanceResponsibility,
	employees.AllowanceOther,
}

type allowancePayload struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	Taxable       *bool  `json:"taxable"`
	EffectiveFrom string `json:"effectiveFrom"`
	EffectiveTo   string `json:"effectiveTo"`
}

func (h *Handler) handleCreateAllowance(w http.ResponseWriter, r *http.Request) {
	var payload allowancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("kind", payload.Kind, "is required")
	v.Enum("kind", payload.Kind, allowanceKinds, "is not a valid allowance kind")
	amount := v.Amount("amount", payload.Amount)
	effectiveFrom, _ := v.Date("effectiveFrom", payload.EffectiveFrom)
	var effectiveTo *time.Time
	if strings.TrimSpace(payload.EffectiveTo) != "" {
		parsed, ok := v.Date("effectiveTo", payload.EffectiveTo)
		if ok {
			effectiveTo = &parsed
			v.DateOrder("effectiveFrom", effectiveFrom, "effectiveTo", parsed)
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	// Allowances are taxable unless the payload says otherwise.
	taxable := true
	if payload.Taxable != nil {
		taxable = *payload.Taxable
	}

	id, err := h.Store.CreateAllowance(r.Context(), employees.Allowance{
		EmployeeID:    chi.URLParam(r, "employeeID"),
		Kind:          payload.Kind,
		Name:          payload.Name,
		Amount:        amount,
		Taxable:       taxable,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "allowance_create_failed", "failed to create allowance", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDeductions(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfDate(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid asOf date", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Store.DeductionsFor(r.Context(), chi.URLParam(r, "employeeID"), asOf)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "deductions_list_failed", "failed to list deductions", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

var deductionKinds = []string{
	employees.DeductionLoan,
	employees.DeductionAdvance,
	employees.DeductionSacco,
	employees.DeductionInsurance,
	employees.DeductionPension,
	employees.DeductionOther,
}

type deductionPayload struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	Pretax        bool   `json:"pretax"`
	EffectiveFrom string `json:"effectiveFrom"`
	EffectiveTo   string `json:"effectiveTo"`
}

func (h *Handler) handleCreateDeduction(w http.ResponseWriter, r *http.Request) {
	var payload deductionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("kind", payload.Kind, "is required")
	v.Enum("kind", payload.Kind, deductionKinds, "is not a valid deduction kind")
	v.Required("name", payload.Name, "is required")
	amount := v.Amount("amount", payload.Amount)
	effectiveFrom, _ := v.Date("effectiveFrom", payload.EffectiveFrom)
	var effectiveTo *time.Time
	if strings.TrimSpace(payload.EffectiveTo) != "" {
		parsed, ok := v.Date("effectiveTo", payload.EffectiveTo)
		if ok {
			effectiveTo = &parsed
			v.DateOrder("effectiveFrom", effectiveFrom, "effectiveTo", parsed)
		}
	}
	if payload.Pretax && payload.Kind != employees.DeductionPension {
		v.Add("pretax", "only pension deductions can be pretax")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Store.CreateDeduction(r.Context(), employees.Deduction{
		EmployeeID:    chi.URLParam(r, "employeeID"),
		Kind:          payload.Kind,
		Name:          payload.Name,
		Amount:        amount,
		Pretax:        payload.Pretax,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "deduction_create_failed", "failed to create deduction", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}
