package domain

import "fmt"

// ParamDescriptor matches an event, state, or action parameter. Exactly one
// of ParamTypeId or Name is populated (§3 invariant). A name-based
// descriptor is looked up in the event's ParamsByName map; the thing
// class's declared paramType list is not consulted.
type ParamDescriptor struct {
	ParamTypeId ParamTypeId
	HasParamId  bool
	Name        string
	Value       any
	Operator    ValueOperator
}

// Validate enforces the "exactly one of id or name" invariant.
func (p ParamDescriptor) Validate() error {
	if p.HasParamId == (p.Name != "") {
		return fmt.Errorf("%w: param descriptor must reference exactly one of id or name", ErrInvalidRuleActionParameter)
	}
	return nil
}

// Matches compares a live parameter value (already resolved by id or name)
// against this descriptor's literal.
func (p ParamDescriptor) Matches(liveValue any) (bool, error) {
	return CompareValues(liveValue, p.Value, p.Operator)
}
