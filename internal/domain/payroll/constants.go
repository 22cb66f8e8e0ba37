package payroll

const (
	StatusDraft             = "draft"
	StatusPendingHR         = "pending_hr"
	StatusPendingManagement = "pending_mgmt"
	StatusApproved          = "approved"
	StatusPaid              = "paid"

	DeductionLoan  = "loan"
	DeductionSacco = "sacco"
	DeductionOther = "other"
)
