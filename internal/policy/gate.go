package policy

import (
	"fmt"

	"github.com/cityflow/cityflow/internal/domain"
)

const (
	ActionComplaintCreate   = "complaint.create"
	ActionComplaintUpdate   = "complaint.update"
	ActionComplaintReject   = "complaint.reject"
	ActionComplaintDelete   = "complaint.delete"
	ActionComplaintAddPhoto = "complaint.photo.add"
	ActionAssignmentAssign  = "assignment.assign"
	ActionAssignmentWork    = "assignment.work"
	ActionAssignmentUpdate  = "assignment.update"
	ActionAssignmentRead    = "assignment.read"
	ActionAssignmentList    = "assignment.list"
	ActionSupportToggle     = "support.toggle"
	ActionSupportList       = "support.list"
	ActionRatingAdd         = "rating.add"
	ActionCategoryWrite     = "category.write"
)

// Gate decides whether an actor may perform an action on a resource.
type Gate struct {
	policy Policy
}

func NewGate(policy Policy) *Gate {
	return &Gate{policy: policy}
}

// NewDefaultGate returns a gate loaded with the built-in role table.
func NewDefaultGate() *Gate {
	return NewGate(DefaultPolicy())
}

// Authorize returns an AuthorizationError unless the policy allows the action.
// this describes the target resource, params carry extra facts such as the
// actor's profile state.
func (g *Gate) Authorize(actor domain.Actor, action string, this map[string]any, params map[string]any) error {
	if this == nil {
		this = map[string]any{}
	}
	if params == nil {
		params = map[string]any{}
	}
	ctx := RequestContext{
		Requester: map[string]any{
			"id":   actor.ID,
			"role": string(actor.Role),
		},
		This:   this,
		Params: params,
	}

	conclusion := EvaluatePolicy(g.policy, ctx, action)
	if SummarizeConclusion([]Conclusion{conclusion}, g.policy.Defaults[action]) {
		return nil
	}
	return domain.AuthorizationError{Message: fmt.Sprintf("%s is not allowed to %s", actor.Role, action)}
}

func load(key string) Expr {
	return Expr{Operator: "Load", Args: []Expr{{Const: key}}}
}

func roleIn(roles ...domain.Role) Expr {
	list := make([]any, 0, len(roles))
	for _, r := range roles {
		list = append(list, string(r))
	}
	return Expr{Operator: "Contains", Args: []Expr{{Const: list}, load("requester.role")}}
}

func owns(field string) Expr {
	return Expr{Operator: "Eq", Args: []Expr{load("requester.id"), load("this." + field)}}
}

func allow(cond Expr) Stmt {
	return Stmt{Emit: "allow", Condition: cond}
}

func deny(cond Expr) Stmt {
	return Stmt{Emit: "deny", Condition: cond}
}

// DefaultPolicy is the role table of the complaint workflow.
func DefaultPolicy() Policy {
	staff := roleIn(domain.RoleOfficial, domain.RoleAdmin)
	return Policy{
		Name: "cityflow",
		Statements: map[string][]Stmt{
			ActionComplaintCreate: {
				allow(Expr{Operator: "And", Args: []Expr{
					roleIn(domain.RoleCitizen),
					{Operator: "Eq", Args: []Expr{load("params.profileCompleted"), {Const: true}}},
				}}),
			},
			ActionComplaintUpdate: {
				allow(roleIn(domain.RoleAdmin, domain.RoleOfficial, domain.RoleEmployee)),
			},
			ActionComplaintReject: {
				allow(staff),
			},
			ActionComplaintDelete: {
				allow(roleIn(domain.RoleAdmin)),
				allow(owns("userId")),
			},
			ActionComplaintAddPhoto: {
				allow(staff),
				allow(owns("userId")),
			},
			ActionAssignmentAssign: {
				allow(staff),
			},
			ActionAssignmentWork: {
				allow(owns("employeeId")),
			},
			ActionAssignmentUpdate: {
				allow(staff),
				allow(owns("employeeId")),
			},
			ActionAssignmentRead: {
				allow(staff),
				allow(owns("employeeId")),
			},
			ActionAssignmentList: {
				allow(roleIn(domain.RoleEmployee)),
			},
			ActionSupportToggle: {
				deny(Expr{Operator: "Eq", Args: []Expr{load("requester.role"), {Const: ""}}}),
			},
			ActionSupportList: {
				allow(staff),
			},
			ActionRatingAdd: {
				deny(Expr{Operator: "Eq", Args: []Expr{load("requester.role"), {Const: ""}}}),
			},
			ActionCategoryWrite: {
				allow(staff),
			},
		},
		Defaults: map[string]bool{
			ActionSupportToggle: true,
			ActionRatingAdd:     true,
		},
	}
}
