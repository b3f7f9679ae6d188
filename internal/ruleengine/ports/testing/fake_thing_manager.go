// Package testing provides in-memory fakes for the rule engine's
// collaborator ports, mirroring the teacher corpus's enginesdk/testing and
// orbitsdk/testing fakes.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// ThingManager is an in-memory ports.ThingManager for tests.
type ThingManager struct {
	mu sync.Mutex

	things      map[domain.ThingId]ports.Thing
	classes     map[domain.ThingClassId]ports.ThingClass
	states      map[domain.ThingId]map[domain.StateTypeId]any
	submissions []ports.ConcreteAction
	nextStatus  ports.ActionStatus
}

func NewThingManager() *ThingManager {
	return &ThingManager{
		things:     map[domain.ThingId]ports.Thing{},
		classes:    map[domain.ThingClassId]ports.ThingClass{},
		states:     map[domain.ThingId]map[domain.StateTypeId]any{},
		nextStatus: ports.StatusNoError,
	}
}

func (m *ThingManager) AddClass(class ports.ThingClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[class.Id] = class
}

func (m *ThingManager) AddThing(thing ports.Thing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.things[thing.Id] = thing
	if _, ok := m.states[thing.Id]; !ok {
		m.states[thing.Id] = map[domain.StateTypeId]any{}
	}
}

// RemoveThing deletes the thing and its state. It does not notify the
// engine; callers invoke Engine.HandleThingRemoved themselves to drive
// housekeeping (§4.9).
func (m *ThingManager) RemoveThing(id domain.ThingId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.things, id)
	delete(m.states, id)
}

func (m *ThingManager) SetState(thingId domain.ThingId, stateTypeId domain.StateTypeId, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[thingId]; !ok {
		m.states[thingId] = map[domain.StateTypeId]any{}
	}
	m.states[thingId][stateTypeId] = value
}

// SetNextActionStatus controls the status SubmitAction reports, for
// exercising SetupFailed/Timeout/InvalidParameter paths.
func (m *ThingManager) SetNextActionStatus(status ports.ActionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStatus = status
}

func (m *ThingManager) Submissions() []ports.ConcreteAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ConcreteAction(nil), m.submissions...)
}

func (m *ThingManager) Things() []ports.Thing {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ports.Thing, 0, len(m.things))
	for _, t := range m.things {
		result = append(result, t)
	}
	return result
}

func (m *ThingManager) Thing(id domain.ThingId) (ports.Thing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.things[id]
	return t, ok
}

func (m *ThingManager) ThingClass(id domain.ThingClassId) (ports.ThingClass, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	return c, ok
}

func (m *ThingManager) ThingsImplementing(interfaceName string) []domain.ThingId {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.ThingId
	for id, t := range m.things {
		class, ok := m.classes[t.ClassId]
		if ok && class.ImplementsInterface(interfaceName) {
			result = append(result, id)
		}
	}
	return result
}

func (m *ThingManager) StateValue(thingId domain.ThingId, stateTypeId domain.StateTypeId) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states, ok := m.states[thingId]
	if !ok {
		return nil, false
	}
	v, ok := states[stateTypeId]
	return v, ok
}

func (m *ThingManager) StateTypeByInterfaceState(thingId domain.ThingId, interfaceState string) (domain.StateTypeId, bool) {
	m.mu.Lock()
	thing, ok := m.things[thingId]
	if !ok {
		m.mu.Unlock()
		return domain.StateTypeId{}, false
	}
	class, ok := m.classes[thing.ClassId]
	m.mu.Unlock()
	if !ok {
		return domain.StateTypeId{}, false
	}
	return class.StateTypeByName(interfaceState)
}

func (m *ThingManager) SubmitAction(ctx context.Context, action ports.ConcreteAction, timeout time.Duration) (*ports.ActionInfo, error) {
	m.mu.Lock()
	m.submissions = append(m.submissions, action)
	status := m.nextStatus
	m.mu.Unlock()

	return &ports.ActionInfo{Status: status}, nil
}

func (m *ThingManager) SubmitBrowserAction(ctx context.Context, action ports.BrowserAction, timeout time.Duration) (*ports.ActionInfo, error) {
	m.mu.Lock()
	status := m.nextStatus
	m.mu.Unlock()
	return &ports.ActionInfo{Status: status}, nil
}
