// Package admin holds the flat set of accounts allowed to mint, burn,
// distribute and manage other administrators.
package admin

import (
	"fmt"
	"slices"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

// Registry keeps administrators in the order they were added.
type Registry struct {
	order   []id.ActorID
	members map[id.ActorID]struct{}
}

// New returns a registry whose only member is first.
func New(first id.ActorID) (*Registry, error) {
	return Restore([]id.ActorID{first})
}

// Restore rebuilds a registry from a persisted member list.
func Restore(admins []id.ActorID) (*Registry, error) {
	r := &Registry{members: make(map[id.ActorID]struct{}, len(admins))}
	for _, a := range admins {
		if a.IsZero() {
			return nil, dErrors.New(dErrors.CodeZeroAddress, "admin cannot be the zero address")
		}
		if r.Contains(a) {
			return nil, fmt.Errorf("duplicate admin %s", a)
		}
		r.insert(a)
	}
	return r, nil
}

func (r *Registry) Contains(account id.ActorID) bool {
	_, ok := r.members[account]
	return ok
}

// RequireAdmin fails with NotAdmin unless caller is a member.
func (r *Registry) RequireAdmin(caller id.ActorID) error {
	if !r.Contains(caller) {
		return dErrors.New(dErrors.CodeNotAdmin, fmt.Sprintf("%s is not an admin", caller))
	}
	return nil
}

// CheckAdd validates Add without applying it.
func (r *Registry) CheckAdd(caller, newAdmin id.ActorID) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "admin cannot be the zero address")
	}
	if r.Contains(newAdmin) {
		return dErrors.New(dErrors.CodeAdminAlreadyExists, fmt.Sprintf("%s is already an admin", newAdmin))
	}
	return nil
}

// Add makes newAdmin a member.
func (r *Registry) Add(caller, newAdmin id.ActorID) error {
	if err := r.CheckAdd(caller, newAdmin); err != nil {
		return err
	}
	r.insert(newAdmin)
	return nil
}

// CheckRemove validates Remove without applying it.
func (r *Registry) CheckRemove(caller, target id.ActorID) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if caller == target {
		return dErrors.New(dErrors.CodeCantDeleteYourself, "an admin cannot remove itself")
	}
	return nil
}

// Remove drops target from the set. Removing a non-member succeeds and
// changes nothing.
func (r *Registry) Remove(caller, target id.ActorID) error {
	if err := r.CheckRemove(caller, target); err != nil {
		return err
	}
	if !r.Contains(target) {
		return nil
	}
	delete(r.members, target)
	r.order = slices.DeleteFunc(r.order, func(a id.ActorID) bool { return a == target })
	return nil
}

// List returns the members in insertion order.
func (r *Registry) List() []id.ActorID {
	return slices.Clone(r.order)
}

func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) insert(a id.ActorID) {
	r.members[a] = struct{}{}
	r.order = append(r.order, a)
}
