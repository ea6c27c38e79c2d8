package tasks

import (
	"fmt"
	"sort"
)

// Registry maps a reference type to the ordered task-type slots a reference
// of that type requires.
type Registry struct {
	slots map[ReferenceType][]TaskType
}

// defaultSlots mirrors the reference types each task type applies to.
var defaultSlots = map[ReferenceType][]TaskType{
	ReferenceOrder:  {TypeCreateInvoice, TypeArrangePickup, TypeCollectPayment},
	ReferenceEntity: {TypeAssignCustomerToSalesPerson},
}

// DefaultRegistry returns the built-in slot table.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultSlots)
}

// NewRegistry builds a registry from a slot table. The table is copied.
func NewRegistry(table map[ReferenceType][]TaskType) *Registry {
	r := &Registry{slots: make(map[ReferenceType][]TaskType, len(table))}
	for ref, types := range table {
		r.slots[ref] = append([]TaskType(nil), types...)
	}
	return r
}

// RegistryFromStrings builds a registry from a config-style table of names,
// such as {"ORDER": ["CREATE_INVOICE", "ARRANGE_PICKUP"]}.
func RegistryFromStrings(table map[string][]string) (*Registry, error) {
	out := make(map[ReferenceType][]TaskType, len(table))
	for ref, names := range table {
		rt, err := ParseReferenceType(ref)
		if err != nil {
			return nil, err
		}
		seen := make(map[TaskType]bool, len(names))
		for _, name := range names {
			tt, err := ParseTaskType(name)
			if err != nil {
				return nil, fmt.Errorf("registry %s: %w", rt, err)
			}
			if seen[tt] {
				return nil, fmt.Errorf("registry %s: duplicate slot %s", rt, tt)
			}
			seen[tt] = true
			out[rt] = append(out[rt], tt)
		}
	}
	return NewRegistry(out), nil
}

// SlotsFor returns the slots for a reference type in reconciliation order.
// Unknown reference types have no slots.
func (r *Registry) SlotsFor(ref ReferenceType) []TaskType {
	return append([]TaskType(nil), r.slots[ref]...)
}

// ReferenceTypes returns the reference types with a slot table, sorted.
func (r *Registry) ReferenceTypes() []ReferenceType {
	out := make([]ReferenceType, 0, len(r.slots))
	for ref := range r.slots {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
