// Package domain holds the rule engine's aggregate, value types, and error
// taxonomy: rules, descriptors, the state evaluator tree, and the time
// descriptor. It has no dependency on how rules are stored, dispatched, or
// transported — those are the concern of application and infrastructure.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// RuleId identifies a Rule. Distinct from the other id types so a ThingId
// can never be passed where a RuleId is expected.
type RuleId uuid.UUID

// NewRuleId generates a new random RuleId.
func NewRuleId() RuleId { return RuleId(uuid.New()) }

// ParseRuleId parses a canonical UUID string into a RuleId.
func ParseRuleId(s string) (RuleId, error) {
	id, err := uuid.Parse(s)
	return RuleId(id), err
}

func (id RuleId) String() string { return uuid.UUID(id).String() }

// IsNil reports whether id is the zero value.
func (id RuleId) IsNil() bool { return id == RuleId{} }

// MarshalText renders id as its canonical hex string (§3), so
// encoding/json marshals it as a JSON string rather than a [16]byte array.
func (id RuleId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText parses a canonical UUID string into id.
func (id *RuleId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse RuleId: %w", err)
	}
	*id = RuleId(parsed)
	return nil
}

// ThingId identifies a configured device instance.
type ThingId uuid.UUID

func NewThingId() ThingId { return ThingId(uuid.New()) }

func ParseThingId(s string) (ThingId, error) {
	id, err := uuid.Parse(s)
	return ThingId(id), err
}

func (id ThingId) String() string { return uuid.UUID(id).String() }
func (id ThingId) IsNil() bool    { return id == ThingId{} }

func (id ThingId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ThingId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse ThingId: %w", err)
	}
	*id = ThingId(parsed)
	return nil
}

// ThingClassId identifies the schema governing a thing's states, events,
// and actions.
type ThingClassId uuid.UUID

func ParseThingClassId(s string) (ThingClassId, error) {
	id, err := uuid.Parse(s)
	return ThingClassId(id), err
}

func (id ThingClassId) String() string { return uuid.UUID(id).String() }
func (id ThingClassId) IsNil() bool    { return id == ThingClassId{} }

func (id ThingClassId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ThingClassId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse ThingClassId: %w", err)
	}
	*id = ThingClassId(parsed)
	return nil
}

// EventTypeId identifies a declared event type on a thing class. A state
// type's id may also appear as an EventTypeId to match synthesized
// state-change pseudo-events (§6.1).
type EventTypeId uuid.UUID

func ParseEventTypeId(s string) (EventTypeId, error) {
	id, err := uuid.Parse(s)
	return EventTypeId(id), err
}

func (id EventTypeId) String() string { return uuid.UUID(id).String() }
func (id EventTypeId) IsNil() bool    { return id == EventTypeId{} }

func (id EventTypeId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EventTypeId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse EventTypeId: %w", err)
	}
	*id = EventTypeId(parsed)
	return nil
}

// StateTypeId identifies a declared state type on a thing class.
type StateTypeId uuid.UUID

func ParseStateTypeId(s string) (StateTypeId, error) {
	id, err := uuid.Parse(s)
	return StateTypeId(id), err
}

func (id StateTypeId) String() string { return uuid.UUID(id).String() }
func (id StateTypeId) IsNil() bool    { return id == StateTypeId{} }

func (id StateTypeId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *StateTypeId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse StateTypeId: %w", err)
	}
	*id = StateTypeId(parsed)
	return nil
}

// ActionTypeId identifies a declared action type on a thing class.
type ActionTypeId uuid.UUID

func ParseActionTypeId(s string) (ActionTypeId, error) {
	id, err := uuid.Parse(s)
	return ActionTypeId(id), err
}

func (id ActionTypeId) String() string { return uuid.UUID(id).String() }
func (id ActionTypeId) IsNil() bool    { return id == ActionTypeId{} }

func (id ActionTypeId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ActionTypeId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse ActionTypeId: %w", err)
	}
	*id = ActionTypeId(parsed)
	return nil
}

// ParamTypeId identifies a declared parameter on an event, state, or action
// type.
type ParamTypeId uuid.UUID

func ParseParamTypeId(s string) (ParamTypeId, error) {
	id, err := uuid.Parse(s)
	return ParamTypeId(id), err
}

func (id ParamTypeId) String() string { return uuid.UUID(id).String() }
func (id ParamTypeId) IsNil() bool    { return id == ParamTypeId{} }

func (id ParamTypeId) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ParamTypeId) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parse ParamTypeId: %w", err)
	}
	*id = ParamTypeId(parsed)
	return nil
}
