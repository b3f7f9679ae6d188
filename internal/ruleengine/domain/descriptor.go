package domain

import "fmt"

// DescriptorKind distinguishes the thing-bound and interface-bound variants
// shared by EventDescriptor and StateDescriptor (§3, design note "Polymorphism
// via tagged variants").
type DescriptorKind int

const (
	DescriptorThingBound DescriptorKind = iota
	DescriptorInterfaceBound
)

// EventDescriptor matches a runtime Event against a rule. A state type's id
// may appear in EventTypeId so event descriptors can target synthesized
// state-change pseudo-events (§6.1) uniformly with explicit events.
type EventDescriptor struct {
	Kind DescriptorKind

	// Thing-bound fields.
	EventTypeId EventTypeId
	ThingId     ThingId

	// Interface-bound fields.
	InterfaceName  string
	InterfaceEvent string

	ParamDescriptors []ParamDescriptor
}

func (d EventDescriptor) Validate() error {
	switch d.Kind {
	case DescriptorThingBound:
		if d.EventTypeId.IsNil() || d.ThingId.IsNil() {
			return fmt.Errorf("%w: thing-bound event descriptor missing eventTypeId or thingId", ErrInvalidRuleFormat)
		}
	case DescriptorInterfaceBound:
		if d.InterfaceName == "" || d.InterfaceEvent == "" {
			return fmt.Errorf("%w: interface-bound event descriptor missing interfaceName or interfaceEvent", ErrInvalidRuleFormat)
		}
	default:
		return fmt.Errorf("%w: unknown event descriptor kind %d", ErrInvalidRuleFormat, d.Kind)
	}
	for _, p := range d.ParamDescriptors {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StateValueRef dereferences another thing's live state value as the
// comparison operand, instead of a literal (§3 "Value may be a literal or a
// reference to another thing's state").
type StateValueRef struct {
	ValueThingId     ThingId
	ValueStateTypeId StateTypeId
}

// StateDescriptor is a leaf predicate in a StateEvaluator tree.
type StateDescriptor struct {
	Kind DescriptorKind

	// Thing-bound fields.
	StateTypeId StateTypeId
	ThingId     ThingId

	// Interface-bound fields.
	InterfaceName  string
	InterfaceState string

	Operator ValueOperator

	// Exactly one of Value or ValueRef is set.
	Value    any
	ValueRef *StateValueRef
}

func (d StateDescriptor) HasValueRef() bool { return d.ValueRef != nil }

func (d StateDescriptor) Validate() error {
	switch d.Kind {
	case DescriptorThingBound:
		if d.StateTypeId.IsNil() || d.ThingId.IsNil() {
			return fmt.Errorf("%w: thing-bound state descriptor missing stateTypeId or thingId", ErrInvalidRuleFormat)
		}
	case DescriptorInterfaceBound:
		if d.InterfaceName == "" || d.InterfaceState == "" {
			return fmt.Errorf("%w: interface-bound state descriptor missing interfaceName or interfaceState", ErrInvalidRuleFormat)
		}
	default:
		return fmt.Errorf("%w: unknown state descriptor kind %d", ErrInvalidRuleFormat, d.Kind)
	}
	if d.ValueRef != nil && d.Value != nil {
		return fmt.Errorf("%w: state descriptor cannot carry both a literal value and a value reference", ErrInvalidRuleFormat)
	}
	return nil
}
