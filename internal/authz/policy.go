// Package authz decides which roles may perform which actions and resolves
// the acting user for HTTP requests.
package authz

import (
	"strings"

	"github.com/safar/koloa-ledger/internal/models"
)

const (
	ResourceOrders   = "orders"
	ResourceProducts = "products"
	ResourceUsers    = "users"
)

const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionCreate  = "create"
	ActionReceive = "receive"
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
)

// Permission formats a resource/action pair as "<resource>:<action>".
func Permission(resource, action string) string {
	return strings.ToLower(strings.TrimSpace(resource)) + ":" + strings.ToLower(strings.TrimSpace(action))
}

// Policy maps roles to the permissions they hold.
type Policy struct {
	grants map[string]map[string]struct{}
}

func NewPolicy(grants map[string][]string) *Policy {
	p := &Policy{grants: make(map[string]map[string]struct{}, len(grants))}
	for role, perms := range grants {
		set := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			perm = strings.ToLower(strings.TrimSpace(perm))
			if perm == "" {
				continue
			}
			set[perm] = struct{}{}
		}
		p.grants[role] = set
	}
	return p
}

// DefaultPolicy lets staff run day to day receiving and reserves
// cancellation, catalogue edits and user administration for admins.
func DefaultPolicy() *Policy {
	staff := []string{
		Permission(ResourceOrders, ActionRead),
		Permission(ResourceOrders, ActionCreate),
		Permission(ResourceOrders, ActionReceive),
		Permission(ResourceOrders, ActionConfirm),
		Permission(ResourceProducts, ActionRead),
	}
	admin := append([]string{
		Permission(ResourceOrders, ActionCancel),
		Permission(ResourceProducts, ActionWrite),
		Permission(ResourceUsers, ActionRead),
		Permission(ResourceUsers, ActionWrite),
	}, staff...)

	return NewPolicy(map[string][]string{
		models.RoleStaff: staff,
		models.RoleAdmin: admin,
	})
}

func (p *Policy) Allows(role, action, resource string) bool {
	if p == nil {
		return false
	}
	set, ok := p.grants[role]
	if !ok {
		return false
	}
	_, ok = set[Permission(resource, action)]
	return ok
}
