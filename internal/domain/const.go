package domain

type ctxKey string

const (
	RequesterIdCtxKey   ctxKey = "cf-requesterId"
	RequesterRoleCtxKey ctxKey = "cf-requesterRole"
)

const (
	AuditActionCreateComplaint  = "CREATE_COMPLAINT"
	AuditActionUpdateComplaint  = "UPDATE_COMPLAINT"
	AuditActionChangeStatus     = "CHANGE_COMPLAINT_STATUS"
	AuditActionRejectComplaint  = "REJECT_COMPLAINT"
	AuditActionDeleteComplaint  = "DELETE_COMPLAINT"
	AuditActionAssignEmployee   = "ASSIGN_EMPLOYEE"
	AuditActionStartAssignment  = "START_ASSIGNMENT"
	AuditActionCompleteWork     = "COMPLETE_ASSIGNMENT"
	AuditActionChangeAssignment = "CHANGE_ASSIGNMENT_STATUS"
	AuditActionCreateCategory   = "CREATE_CATEGORY"
	AuditActionUpdateCategory   = "UPDATE_CATEGORY"
	AuditActionDeleteCategory   = "DELETE_CATEGORY"
)

const (
	AuditTargetComplaint  = "complaint"
	AuditTargetAssignment = "assignment"
	AuditTargetCategory   = "category"
)
