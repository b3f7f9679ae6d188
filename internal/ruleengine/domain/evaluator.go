package domain

// ThingStateAccessor is the minimal read-only view of configured things and
// their live state that StateEvaluator needs to evaluate itself (§4.2). The
// Thing Manager port (internal/ruleengine/ports) satisfies this structurally.
type ThingStateAccessor interface {
	// StateValue returns the current value of a thing's state, and whether
	// the thing/state pair is known.
	StateValue(thingId ThingId, stateTypeId StateTypeId) (any, bool)

	// ThingsImplementing lists things whose thing class implements the
	// named interface.
	ThingsImplementing(interfaceName string) []ThingId

	// StateTypeByInterfaceState resolves the concrete StateTypeId a thing
	// uses to back a named interface state.
	StateTypeByInterfaceState(thingId ThingId, interfaceState string) (StateTypeId, bool)
}

// StateEvaluator is a recursive boolean tree over StateDescriptor leaves
// (design note "Tree ownership" — children are held by value in a
// contiguous slice owned by the parent, never through shared references,
// so the tree cannot contain cycles).
type StateEvaluator struct {
	// Descriptor is set for leaf nodes; nil for interior nodes.
	Descriptor *StateDescriptor

	Children []StateEvaluator
	Operator StateOperator
}

// IsEmpty reports whether this evaluator carries neither a descriptor nor
// children — such an evaluator evaluates to true unconditionally (§3, §4.2,
// §8 invariant).
func (e StateEvaluator) IsEmpty() bool {
	return e.Descriptor == nil && len(e.Children) == 0
}

// IsLeaf reports whether this node carries a descriptor rather than
// children.
func (e StateEvaluator) IsLeaf() bool {
	return e.Descriptor != nil
}

// Evaluate is pure and side-effect free: repeated calls over an unchanged
// accessor snapshot return the same result (§8 invariant). It implements the
// short-circuit rules of §4.2:
//   - a matching leaf under Or returns true immediately;
//   - a non-matching leaf under And returns false immediately;
//   - otherwise the node folds its children with its own operator;
//   - an entirely empty evaluator returns true.
func (e StateEvaluator) Evaluate(accessor ThingStateAccessor) bool {
	if e.IsEmpty() {
		return true
	}

	if e.IsLeaf() {
		matches := e.evaluateDescriptor(*e.Descriptor, accessor)
		if !matches && e.Operator == StateOperatorAnd {
			return false
		}
		if matches && e.Operator == StateOperatorOr {
			return true
		}
		return matches
	}

	if e.Operator == StateOperatorOr {
		for _, child := range e.Children {
			if child.Evaluate(accessor) {
				return true
			}
		}
		return false
	}

	for _, child := range e.Children {
		if !child.Evaluate(accessor) {
			return false
		}
	}
	return true
}

func (e StateEvaluator) evaluateDescriptor(d StateDescriptor, accessor ThingStateAccessor) bool {
	switch d.Kind {
	case DescriptorThingBound:
		return e.evaluateThingBound(d, d.ThingId, accessor)
	case DescriptorInterfaceBound:
		for _, thingId := range accessor.ThingsImplementing(d.InterfaceName) {
			stateTypeId, ok := accessor.StateTypeByInterfaceState(thingId, d.InterfaceState)
			if !ok {
				continue
			}
			synth := d
			synth.Kind = DescriptorThingBound
			synth.StateTypeId = stateTypeId
			if e.evaluateThingBound(synth, thingId, accessor) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (e StateEvaluator) evaluateThingBound(d StateDescriptor, thingId ThingId, accessor ThingStateAccessor) bool {
	live, ok := accessor.StateValue(thingId, d.StateTypeId)
	if !ok {
		return false
	}

	var operand any
	if d.ValueRef != nil {
		operand, ok = accessor.StateValue(d.ValueRef.ValueThingId, d.ValueRef.ValueStateTypeId)
		if !ok {
			// §9 open question (a): a reference to a state that does not
			// exist evaluates to false at run time; no warning is logged
			// here or by the caller. A reference already missing at add
			// time is rejected up front (see Engine.validateStateEvaluator).
			return false
		}
	} else {
		operand = d.Value
	}

	matches, err := CompareValues(live, operand, d.Operator)
	if err != nil {
		return false
	}
	return matches
}

// ContainsThing recursively reports whether any leaf in the tree references
// thingId, directly or via a value reference.
func (e StateEvaluator) ContainsThing(thingId ThingId) bool {
	if e.IsLeaf() {
		d := *e.Descriptor
		if d.Kind == DescriptorThingBound && d.ThingId == thingId {
			return true
		}
		if d.ValueRef != nil && d.ValueRef.ValueThingId == thingId {
			return true
		}
		return false
	}
	for _, child := range e.Children {
		if child.ContainsThing(thingId) {
			return true
		}
	}
	return false
}

// ContainedThings recursively collects every thing referenced by the tree.
func (e StateEvaluator) ContainedThings() []ThingId {
	var result []ThingId
	if e.IsLeaf() {
		d := *e.Descriptor
		if d.Kind == DescriptorThingBound {
			result = append(result, d.ThingId)
		}
		if d.ValueRef != nil {
			result = append(result, d.ValueRef.ValueThingId)
		}
		return result
	}
	for _, child := range e.Children {
		result = append(result, child.ContainedThings()...)
	}
	return result
}

// RemoveThing returns a copy of the tree with every leaf referencing
// thingId dropped (used by housekeeping, §4.9). Interior nodes left with no
// children and no descriptor collapse to an empty evaluator.
func (e StateEvaluator) RemoveThing(thingId ThingId) StateEvaluator {
	if e.IsLeaf() {
		if e.ContainsThing(thingId) {
			return StateEvaluator{}
		}
		return e
	}
	trimmed := make([]StateEvaluator, 0, len(e.Children))
	for _, child := range e.Children {
		rc := child.RemoveThing(thingId)
		if rc.IsEmpty() {
			continue
		}
		trimmed = append(trimmed, rc)
	}
	return StateEvaluator{Children: trimmed, Operator: e.Operator}
}

// ContainsState reports whether event, which may be a synthesized
// state-change pseudo-event, corresponds to a descriptor leaf somewhere in
// this tree (§4.2, used by the engine's event path to decide whether to
// re-evaluate statesActive).
func (e StateEvaluator) ContainsState(thingId ThingId, stateTypeId StateTypeId) bool {
	if e.IsLeaf() {
		d := *e.Descriptor
		if d.Kind == DescriptorThingBound && d.ThingId == thingId && d.StateTypeId == stateTypeId {
			return true
		}
		if d.ValueRef != nil && d.ValueRef.ValueThingId == thingId && d.ValueRef.ValueStateTypeId == stateTypeId {
			return true
		}
		return false
	}
	for _, child := range e.Children {
		if child.ContainsState(thingId, stateTypeId) {
			return true
		}
	}
	return false
}
