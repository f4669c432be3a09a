package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityflow/cityflow/internal/domain"
)

func TestEvalLoad(t *testing.T) {
	ctx := RequestContext{
		Params: map[string]any{
			"user": "alice",
			"role": "admin",
		},
	}

	expr := Expr{
		Operator: "Eq",
		Args: []Expr{
			load("params.role"),
			{Const: "admin"},
		},
	}

	result, err := Eval(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, true, result.Result)
}

func TestEvalUnknownOperator(t *testing.T) {
	_, err := Eval(RequestContext{}, Expr{Operator: "Xor"})
	assert.Error(t, err)
}

func TestConclusionOr(t *testing.T) {
	assert.Equal(t, ALLOW, UNSET.Or(ALLOW))
	assert.Equal(t, UNSET, ALLOW.Or(DENY))
	assert.Equal(t, DENY, DENY.Or(NG))
	assert.Equal(t, OK, OK.Or(UNSET))
}

func TestGateComplaintCreate(t *testing.T) {
	gate := NewDefaultGate()
	citizen := domain.Actor{ID: 1, Role: domain.RoleCitizen}

	assert.NoError(t, gate.Authorize(citizen, ActionComplaintCreate, nil, map[string]any{"profileCompleted": true}))

	err := gate.Authorize(citizen, ActionComplaintCreate, nil, map[string]any{"profileCompleted": false})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	official := domain.Actor{ID: 2, Role: domain.RoleOfficial}
	err = gate.Authorize(official, ActionComplaintCreate, nil, map[string]any{"profileCompleted": true})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGateOwnership(t *testing.T) {
	gate := NewDefaultGate()
	employee := domain.Actor{ID: 9, Role: domain.RoleEmployee}
	other := domain.Actor{ID: 10, Role: domain.RoleEmployee}
	assignment := map[string]any{"employeeId": int64(9)}

	assert.NoError(t, gate.Authorize(employee, ActionAssignmentWork, assignment, nil))
	assert.ErrorIs(t, gate.Authorize(other, ActionAssignmentWork, assignment, nil), domain.ErrUnauthorized)

	official := domain.Actor{ID: 3, Role: domain.RoleOfficial}
	assert.ErrorIs(t, gate.Authorize(official, ActionAssignmentWork, assignment, nil), domain.ErrUnauthorized)
	assert.NoError(t, gate.Authorize(official, ActionAssignmentRead, assignment, nil))
}

func TestGateRoleTable(t *testing.T) {
	gate := NewDefaultGate()
	tests := []struct {
		role    domain.Role
		action  string
		allowed bool
	}{
		{domain.RoleEmployee, ActionComplaintUpdate, true},
		{domain.RoleCitizen, ActionComplaintUpdate, false},
		{domain.RoleOfficial, ActionComplaintReject, true},
		{domain.RoleEmployee, ActionComplaintReject, false},
		{domain.RoleAdmin, ActionAssignmentAssign, true},
		{domain.RoleEmployee, ActionAssignmentAssign, false},
		{domain.RoleEmployee, ActionAssignmentList, true},
		{domain.RoleCitizen, ActionSupportToggle, true},
		{"", ActionSupportToggle, false},
		{domain.RoleCitizen, ActionRatingAdd, true},
		{domain.RoleCitizen, ActionCategoryWrite, false},
		{domain.RoleOfficial, ActionCategoryWrite, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.action, func(t *testing.T) {
			err := gate.Authorize(domain.Actor{ID: 1, Role: tt.role}, tt.action, nil, nil)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			}
		})
	}
}
