// Package permission resolves a role name, the system-wide override table
// and optional per-user standing grants into a complete capability map.
// Resolution is pure — no I/O, no errors — so the same function can back
// both the HTTP middleware and the workflow engine.
package permission

import "backend/internal/model"

// Capabilities is the resolved, closed capability map. Every known
// capability code is present as a key.
type Capabilities map[string]bool

// Has reports whether the capability is granted. Unknown codes are false.
func (c Capabilities) Has(code string) bool {
	return c[code]
}

// Overrides is the system-wide override table: role name → capability code
// → forced value. Partial by design; missing keys fall back to defaults.
type Overrides map[string]map[string]bool

// roleDefaults holds the hard-coded default capability sets for built-in
// roles. Custom roles are absent and start from all-false.
var roleDefaults = map[string][]string{
	model.RoleAdmin: model.AllCapabilities(),
	model.RoleFinance: {
		model.CapApprovePaymentFinance,
		model.CapViewAllDocuments,
		model.CapEditOwnDocuments,
	},
	model.RoleManager: {
		model.CapApprovePaymentManager,
		model.CapApproveDispatchManager,
		model.CapViewAllDocuments,
		model.CapEditOwnDocuments,
	},
	model.RoleCeo: {
		model.CapApprovePaymentCeo,
		model.CapApproveExitCeo,
		model.CapViewAllDocuments,
	},
	model.RoleFactory: {
		model.CapApproveExitFactory,
		model.CapEditOwnDocuments,
	},
	model.RoleWarehouse: {
		model.CapApproveExitWarehouse,
		model.CapApproveDispatchWarehouse,
		model.CapEditOwnDocuments,
	},
	model.RoleSecurity: {
		model.CapApproveExitSecurity,
	},
	model.RoleStaff: {
		model.CapEditOwnDocuments,
	},
}

// Resolve computes the effective capability map for a role. Total by
// construction: unknown role names get the all-false default merged with
// whatever override rows exist for that literal role string, which is how
// administrator-defined custom roles work without special casing. The
// optional user contributes standing grants that win over everything.
func Resolve(role string, overrides Overrides, user *model.User) Capabilities {
	caps := make(Capabilities, len(model.AllCapabilities()))
	for _, code := range model.AllCapabilities() {
		caps[code] = false
	}

	for _, code := range roleDefaults[role] {
		caps[code] = true
	}

	for code, allowed := range overrides[role] {
		if _, known := caps[code]; known {
			caps[code] = allowed
		}
	}

	if user != nil {
		for _, code := range user.GrantList() {
			if _, known := caps[code]; known {
				caps[code] = true
			}
		}
	}

	return caps
}
