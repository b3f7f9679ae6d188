// Package ports declares the rule engine's collaborator contracts: the
// Thing Manager, the Time Manager, and the Log Sink (§6). These are named
// ports only — concrete device drivers, the JSON-RPC/REST transports, and
// the scripting host are out of scope (§1) and are represented here solely
// by the interfaces the engine depends on, plus in-memory fakes for tests.
package ports

import (
	"context"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
)

// ParamTypeDef declares one parameter on an event, state, or action type.
type ParamTypeDef struct {
	Id             domain.ParamTypeId
	Name           string
	MinValue       any
	MaxValue       any
	PossibleValues []any
	DefaultValue   any
}

// EventTypeDef declares an event (or, synthetically, a state-change
// pseudo-event) a thing class can emit.
type EventTypeDef struct {
	Id     domain.EventTypeId
	Name   string
	Params []ParamTypeDef
}

// StateTypeDef declares a state a thing class exposes.
type StateTypeDef struct {
	Id             domain.StateTypeId
	Name           string
	MinValue       any
	MaxValue       any
	PossibleValues []any
}

// ActionTypeDef declares an action a thing class accepts.
type ActionTypeDef struct {
	Id     domain.ActionTypeId
	Name   string
	Params []ParamTypeDef
}

// ThingClass is the schema governing a thing's events, states, and actions
// (glossary "Thing class").
type ThingClass struct {
	Id         domain.ThingClassId
	Name       string
	Interfaces []string
	EventTypes []EventTypeDef
	StateTypes []StateTypeDef
	ActionTypes []ActionTypeDef
}

func (tc ThingClass) ImplementsInterface(name string) bool {
	for _, i := range tc.Interfaces {
		if i == name {
			return true
		}
	}
	return false
}

func (tc ThingClass) EventType(id domain.EventTypeId) (EventTypeDef, bool) {
	for _, e := range tc.EventTypes {
		if e.Id == id {
			return e, true
		}
	}
	return EventTypeDef{}, false
}

func (tc ThingClass) StateType(id domain.StateTypeId) (StateTypeDef, bool) {
	for _, s := range tc.StateTypes {
		if s.Id == id {
			return s, true
		}
	}
	return StateTypeDef{}, false
}

func (tc ThingClass) ActionType(id domain.ActionTypeId) (ActionTypeDef, bool) {
	for _, a := range tc.ActionTypes {
		if a.Id == id {
			return a, true
		}
	}
	return ActionTypeDef{}, false
}

// EventTypeByName resolves an event or state-change pseudo-event by the
// name an interface declares (§4.5 "interface-bound... event/state type's
// declared name equals interfaceEvent").
func (tc ThingClass) EventTypeByName(name string) (domain.EventTypeId, bool) {
	for _, e := range tc.EventTypes {
		if e.Name == name {
			return e.Id, true
		}
	}
	for _, s := range tc.StateTypes {
		if s.Name == name {
			return domain.EventTypeId(s.Id), true
		}
	}
	return domain.EventTypeId{}, false
}

func (tc ThingClass) StateTypeByName(name string) (domain.StateTypeId, bool) {
	for _, s := range tc.StateTypes {
		if s.Name == name {
			return s.Id, true
		}
	}
	return domain.StateTypeId{}, false
}

func (tc ThingClass) ActionTypeByName(name string) (domain.ActionTypeId, bool) {
	for _, a := range tc.ActionTypes {
		if a.Name == name {
			return a.Id, true
		}
	}
	return domain.ActionTypeId{}, false
}

// Thing is a configured device instance.
type Thing struct {
	Id      domain.ThingId
	Name    string
	ClassId domain.ThingClassId
}

// Event is a runtime occurrence, either an explicit thing event or a
// synthesized state-change pseudo-event (§6.1, glossary "Event").
type Event struct {
	ThingId     domain.ThingId
	EventTypeId domain.EventTypeId
	Params      map[domain.ParamTypeId]any
	// ParamsByName mirrors Params for descriptors that reference a
	// parameter by name (§3 ParamDescriptor).
	ParamsByName map[string]any
}

// ActionStatus is the outcome reported on an action's completion handle
// (§4.7, §6.1).
type ActionStatus int

const (
	StatusNoError ActionStatus = iota
	StatusSetupFailed
	StatusInvalidParameter
	StatusTimeout
	StatusAsync
)

func (s ActionStatus) String() string {
	switch s {
	case StatusNoError:
		return "NoError"
	case StatusSetupFailed:
		return "SetupFailed"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusTimeout:
		return "Timeout"
	case StatusAsync:
		return "Async"
	default:
		return "Unknown"
	}
}

// ActionInfo is the asynchronous completion handle a submitted action
// returns (design note "Async actions"): it completes exactly once, either
// synchronously before SubmitAction returns or later via Done.
type ActionInfo struct {
	Status         ActionStatus
	DisplayMessage string
	Done           <-chan ActionResult
}

// ActionResult is delivered on ActionInfo.Done when a plugin completes an
// action asynchronously (ActionStatus == StatusAsync at submission time).
type ActionResult struct {
	Status         ActionStatus
	DisplayMessage string
}

// ConcreteAction is one fully-bound action ready for submission, produced
// by expanding a RuleAction's bindings (§4.7).
type ConcreteAction struct {
	ThingId      domain.ThingId
	ActionTypeId domain.ActionTypeId
	ActionName   string
	Params       map[domain.ParamTypeId]any
}

// BrowserAction is a browser-item execution request (§4.7 Browser variant).
type BrowserAction struct {
	ThingId       domain.ThingId
	BrowserItemId string
}

// ThingManager is the consumed port described in §6.1.
type ThingManager interface {
	Things() []Thing
	Thing(id domain.ThingId) (Thing, bool)
	ThingClass(id domain.ThingClassId) (ThingClass, bool)
	ThingsImplementing(interfaceName string) []domain.ThingId

	StateValue(thingId domain.ThingId, stateTypeId domain.StateTypeId) (any, bool)

	// StateTypeByInterfaceState resolves the concrete state type a thing
	// uses to back a named interface state — typically
	// ThingClass(thing.ClassId).StateTypeByName(interfaceState). Present so
	// ThingManager satisfies domain.ThingStateAccessor structurally.
	StateTypeByInterfaceState(thingId domain.ThingId, interfaceState string) (domain.StateTypeId, bool)

	SubmitAction(ctx context.Context, action ConcreteAction, timeout time.Duration) (*ActionInfo, error)
	SubmitBrowserAction(ctx context.Context, action BrowserAction, timeout time.Duration) (*ActionInfo, error)
}
