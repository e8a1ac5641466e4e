// Package policy holds the per-resource authorization rules. A Gate keeps one
// Policy per resource type; services ask it whether a principal may perform an
// action on a record and use each policy's Scope to narrow list queries.
package policy

import (
	"context"
	"errors"
	"fmt"

	"gestionlearn.com/internal/domain"
)

// Action is the kind of operation being authorized.
type Action string

const (
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource type names used when registering policies.
const (
	ResourceCourse    = "course"
	ResourceHourEntry = "hour_entry"
)

var ErrNoPolicyDefined = errors.New("no policy defined for resource")

// Policy decides whether p may perform action on resource. A denial is
// returned as a *domain.AppError with status 403 and the reason in Message.
type Policy interface {
	Can(ctx context.Context, p domain.Principal, action Action, resource any) error
}

// Gate is the registry of policies, keyed by resource type.
type Gate struct {
	policies map[string]Policy
}

func NewGate() *Gate {
	return &Gate{policies: make(map[string]Policy)}
}

// Register adds or replaces the policy for resourceType.
func (g *Gate) Register(resourceType string, p Policy) {
	g.policies[resourceType] = p
}

// Authorize returns nil when the action is allowed.
func (g *Gate) Authorize(ctx context.Context, p domain.Principal, action Action, resourceType string, resource any) error {
	if p.ID == 0 {
		return domain.NewUnauthorizedError(domain.CodeAuthRequired, "Authentication required")
	}
	pol, ok := g.policies[resourceType]
	if !ok {
		return domain.NewInternalError(fmt.Sprintf("authorize %s", resourceType), ErrNoPolicyDefined)
	}
	return pol.Can(ctx, p, action, resource)
}

// Can is Authorize as a boolean.
func (g *Gate) Can(ctx context.Context, p domain.Principal, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, p, action, resourceType, resource) == nil
}

// NewDefaultGate registers the course and hour entry policies.
func NewDefaultGate(opts Options) *Gate {
	g := NewGate()
	g.Register(ResourceCourse, &CoursePolicy{Options: opts})
	g.Register(ResourceHourEntry, &HourEntryPolicy{Options: opts})
	return g
}

func deny(format string, args ...any) error {
	return domain.NewForbiddenError(fmt.Sprintf(format, args...))
}
