package permission

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIsTotal(t *testing.T) {
	for _, role := range []string{model.RoleAdmin, model.RoleStaff, "night-shift-lead", ""} {
		caps := Resolve(role, nil, nil)
		require.Len(t, caps, len(model.AllCapabilities()), "role %q", role)
		for _, code := range model.AllCapabilities() {
			_, present := caps[code]
			assert.True(t, present, "role %q missing key %s", role, code)
		}
	}
}

func TestResolveBuiltInDefaults(t *testing.T) {
	finance := Resolve(model.RoleFinance, nil, nil)
	assert.True(t, finance.Has(model.CapApprovePaymentFinance))
	assert.True(t, finance.Has(model.CapViewAllDocuments))
	assert.False(t, finance.Has(model.CapApprovePaymentCeo))
	assert.False(t, finance.Has(model.CapManageRoles))

	admin := Resolve(model.RoleAdmin, nil, nil)
	for _, code := range model.AllCapabilities() {
		assert.True(t, admin.Has(code), "admin should hold %s", code)
	}

	security := Resolve(model.RoleSecurity, nil, nil)
	assert.True(t, security.Has(model.CapApproveExitSecurity))
	assert.False(t, security.Has(model.CapEditOwnDocuments))
}

func TestResolveOverridesMergePerKey(t *testing.T) {
	overrides := Overrides{
		model.RoleFinance: {
			model.CapApprovePaymentFinance: false, // revoke a default
			model.CapApprovePaymentManager: true,  // grant beyond defaults
		},
	}

	caps := Resolve(model.RoleFinance, overrides, nil)
	assert.False(t, caps.Has(model.CapApprovePaymentFinance))
	assert.True(t, caps.Has(model.CapApprovePaymentManager))
	// Untouched defaults survive the merge.
	assert.True(t, caps.Has(model.CapViewAllDocuments))
}

func TestResolveIgnoresUnknownOverrideKeys(t *testing.T) {
	overrides := Overrides{
		model.RoleStaff: {"documents.launch_rocket": true},
	}
	caps := Resolve(model.RoleStaff, overrides, nil)
	assert.Len(t, caps, len(model.AllCapabilities()), "unknown codes must not widen the map")
	assert.False(t, caps.Has("documents.launch_rocket"))
}

func TestResolveCustomRoleStartsAllFalse(t *testing.T) {
	caps := Resolve("auditor-external", nil, nil)
	for _, code := range model.AllCapabilities() {
		assert.False(t, caps.Has(code))
	}

	// Overrides are the only way a custom role gains capabilities.
	overrides := Overrides{"auditor-external": {model.CapReadAudit: true}}
	caps = Resolve("auditor-external", overrides, nil)
	assert.True(t, caps.Has(model.CapReadAudit))
	assert.False(t, caps.Has(model.CapViewAllDocuments))
}

func TestResolveStandingGrantsWinOverOverrides(t *testing.T) {
	overrides := Overrides{
		model.RoleStaff: {model.CapTradeAccess: false},
	}
	user := &model.User{Role: model.RoleStaff, StandingGrants: `["trade.access"]`}

	caps := Resolve(model.RoleStaff, overrides, user)
	assert.True(t, caps.Has(model.CapTradeAccess), "standing grant must override the override")
}

func TestResolveMalformedGrantsIgnored(t *testing.T) {
	user := &model.User{Role: model.RoleStaff, StandingGrants: `{"not":"a list"}`}
	caps := Resolve(model.RoleStaff, nil, user)
	assert.True(t, caps.Has(model.CapEditOwnDocuments))
	assert.False(t, caps.Has(model.CapTradeAccess))
}

func TestHasUnknownCodeFalse(t *testing.T) {
	caps := Resolve(model.RoleAdmin, nil, nil)
	assert.False(t, caps.Has("no.such.capability"))
}
