package authz

// Permission names guarding the HTTP surface. Names are compared in lower case.
const (
	PermMonkRead    = "monk:read"
	PermMonkCreate  = "monk:create"
	PermMonkUpdate  = "monk:update"
	PermMonkApprove = "monk:approve"
	PermMonkDelete  = "monk:delete"
	PermBranchRead  = "branch:read"
	PermAuditRead   = "audit:read"
	PermAuthzManage = "authz:manage"
	PermUserManage  = "user:manage"
)

const GroupHeadOffice = "head-office"

// AllPermissions lists every permission the service checks, with a short
// description used when seeding.
var AllPermissions = []struct {
	Name        string
	Description string
}{
	{PermMonkRead, "View monk records in scope"},
	{PermMonkCreate, "Register new monk records"},
	{PermMonkUpdate, "Edit monk records in scope"},
	{PermMonkApprove, "Move monk records through the workflow"},
	{PermMonkDelete, "Remove monk records"},
	{PermBranchRead, "View the branch hierarchy"},
	{PermAuditRead, "Read the audit trail"},
	{PermAuthzManage, "Assign roles and permission overrides"},
	{PermUserManage, "Change user branch assignments"},
}
