package models

import "strings"

// Role identifies a caller's role. Unrecognised roles keep their normalised
// name so that files they upload stay scoped to that name; only an empty
// role is RoleUnknown.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleBoss               Role = "boss"
	RoleSoftwareEngineer   Role = "software_engineer"
	RoleMechanicalEngineer Role = "mechanical_engineer"
	RoleElectricalEngineer Role = "electrical_engineer"
	RoleSales              Role = "sales"
	RoleProcurement        Role = "procurement"
	RoleService            Role = "service"
	RoleFinance            Role = "finance"
	RoleCustomer           Role = "customer"
	RoleUnknown            Role = ""
)

type capabilities struct {
	uploadCategories []Category
	// sees every file regardless of owner role
	seesAll bool
	// may make files visible to customers
	togglesVisibility bool
	// may delete others' files and restore deleted ones
	managesDeleted bool
}

var allCategories = []Category{CategoryContract, CategoryTech, CategoryDrawing, CategoryOther}

var defaultCapabilities = capabilities{
	uploadCategories: allCategories,
}

var roleTable = map[Role]capabilities{
	RoleAdmin:              {uploadCategories: allCategories, seesAll: true, togglesVisibility: true, managesDeleted: true},
	RoleBoss:               {uploadCategories: allCategories, seesAll: true, togglesVisibility: true, managesDeleted: true},
	RoleSoftwareEngineer:   {uploadCategories: allCategories, seesAll: true},
	RoleMechanicalEngineer: {uploadCategories: allCategories},
	RoleElectricalEngineer: {uploadCategories: allCategories},
	RoleSales:              {uploadCategories: []Category{CategoryContract, CategoryTech, CategoryOther}, togglesVisibility: true},
	RoleProcurement:        {uploadCategories: allCategories},
	RoleService:            {uploadCategories: allCategories},
	RoleFinance:            {uploadCategories: allCategories},
	RoleCustomer:           {uploadCategories: allCategories},
}

var roleAliases = map[string]Role{
	"owner":        RoleBoss,
	"procurements": RoleProcurement,
	"管理员":          RoleAdmin,
	"老板":           RoleBoss,
	"软件工程师":        RoleSoftwareEngineer,
	"机械工程师":        RoleMechanicalEngineer,
	"电气工程师":        RoleElectricalEngineer,
	"销售":           RoleSales,
	"客户":           RoleCustomer,
}

// ParseRole normalises a role string: trims, lower-cases, maps spaces to
// underscores and resolves known aliases.
func ParseRole(s string) Role {
	r := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if alias, ok := roleAliases[r]; ok {
		return alias
	}
	return Role(r)
}

// Known reports whether r is one of the declared roles.
func (r Role) Known() bool {
	_, ok := roleTable[r]
	return ok
}

func (r Role) caps() capabilities {
	if c, ok := roleTable[r]; ok {
		return c
	}
	return defaultCapabilities
}

// CanUpload reports whether the role may upload files of category c.
func (r Role) CanUpload(c Category) bool {
	for _, allowed := range r.caps().uploadCategories {
		if allowed == c {
			return true
		}
	}
	return false
}

// CanToggleVisibility reports membership of admin, boss and sales.
func (r Role) CanToggleVisibility() bool { return r.caps().togglesVisibility }

// CanManageDeleted reports whether r may delete any file and restore deleted
// ones (admin and boss).
func (r Role) CanManageDeleted() bool { return r.caps().managesDeleted }

// SeesAll reports whether the role bypasses owner-role scoping.
func (r Role) SeesAll() bool { return r.caps().seesAll }

func (r Role) IsExternal() bool { return r == RoleCustomer }

// CustomerCategories are the only categories ever exposed to external viewers.
var CustomerCategories = []Category{CategoryContract, CategoryTech}

func isCustomerCategory(c Category) bool {
	for _, cc := range CustomerCategories {
		if cc == c {
			return true
		}
	}
	return false
}

// CanAccess evaluates the download/visibility matrix in priority order.
func CanAccess(r Role, f *StoredFile) bool {
	switch {
	case r.SeesAll():
		return true
	case r.IsExternal():
		return f.IsPublic && isCustomerCategory(f.Category) && !f.IsDeleted
	default:
		return f.OwnerRole == RoleUnknown || f.OwnerRole == r
	}
}

// Actor is the resolved caller identity handed over by the transport layer.
type Actor struct {
	UserID   string
	Role     Role
	RemoteIP string
}
