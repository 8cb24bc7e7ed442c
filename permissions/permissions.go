// Package permissions evaluates the permission map returned for the signed
// in user.
package permissions

import "slices"

const Wildcard = "*"

// Resources.
const (
	ManagementUsers = "identity:management:users"
	ManagementRBAC  = "iam:management:rbac"
)

// Actions.
const (
	Read   = "read"
	Create = "create"
	Update = "update"
	Delete = "delete"
	Import = "import"
	Export = "export"
)

// Set maps a resource to the actions allowed on it.
type Set map[string][]string

// Can reports whether action is allowed on resource. A "*" resource with
// "*" or action grants everything; otherwise the resource's own actions
// must contain "*" or action.
func (s Set) Can(resource, action string) bool {
	if s == nil {
		return false
	}
	if allows(s[Wildcard], action) {
		return true
	}
	return allows(s[resource], action)
}

// CanAny reports whether any of actions is allowed on resource.
func (s Set) CanAny(resource string, actions ...string) bool {
	for _, a := range actions {
		if s.Can(resource, a) {
			return true
		}
	}
	return false
}

// CanEach evaluates each action on resource in order.
func (s Set) CanEach(resource string, actions ...string) []bool {
	out := make([]bool, len(actions))
	for i, a := range actions {
		out[i] = s.Can(resource, a)
	}
	return out
}

func allows(actions []string, action string) bool {
	return slices.Contains(actions, Wildcard) || slices.Contains(actions, action)
}
