// Package persistence implements domain.RuleStore, grounded on the teacher
// corpus's automations SQLite repository: a rule's nested groups are
// marshaled into one JSON payload column, upserted under the rule's id
// (§4.10, §6.5).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"

	_ "modernc.org/sqlite"
)

// SQLiteRuleStore implements domain.RuleStore against a SQLite database
// opened with the "sqlite" driver (modernc.org/sqlite, pure Go, no cgo).
type SQLiteRuleStore struct {
	db *sql.DB
}

func NewSQLiteRuleStore(db *sql.DB) *SQLiteRuleStore {
	return &SQLiteRuleStore{db: db}
}

// ruleRow is the JSON-serializable shape of a persisted rule (§4.10): name,
// enabled, executable, plus the four nested groups.
type ruleRow struct {
	Name             string                   `json:"name"`
	Enabled          bool                     `json:"enabled"`
	Executable       bool                     `json:"executable"`
	EventDescriptors []domain.EventDescriptor `json:"events"`
	StateEvaluator   domain.StateEvaluator    `json:"stateEvaluator"`
	TimeDescriptor   domain.TimeDescriptor    `json:"timeDescriptor"`
	Actions          []domain.RuleAction      `json:"ruleActions"`
	ExitActions      []domain.RuleAction      `json:"ruleExitActions"`
}

func toRow(r *domain.Rule) ruleRow {
	return ruleRow{
		Name:             r.Name,
		Enabled:          r.Enabled,
		Executable:       r.Executable,
		EventDescriptors: r.EventDescriptors,
		StateEvaluator:   r.StateEvaluator,
		TimeDescriptor:   r.TimeDescriptor,
		Actions:          r.Actions,
		ExitActions:      r.ExitActions,
	}
}

func fromRow(id domain.RuleId, row ruleRow) *domain.Rule {
	r := domain.NewRule(row.Name, row.EventDescriptors, row.StateEvaluator, row.TimeDescriptor, row.Actions, row.ExitActions)
	r.Id = id
	r.Enabled = row.Enabled
	r.Executable = row.Executable
	return r
}

// Save upserts rule under its id, serializing the nested groups as a single
// JSON document. No valueType tag is written: fields with a fixed Go type
// round-trip through the struct shape, but values held in `any` fields
// (descriptor and action-parameter values) come back as encoding/json's
// generic types, so an integer literal is restored as a float64.
func (s *SQLiteRuleStore) Save(ctx context.Context, r *domain.Rule) error {
	payload, err := json.Marshal(toRow(r))
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", r.Id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, r.Id.String(), string(payload))
	return err
}

// Delete removes the rule with the given id. Deleting an absent id is not
// an error.
func (s *SQLiteRuleStore) Delete(ctx context.Context, id domain.RuleId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id.String())
	return err
}

// LoadAll returns every persisted rule in lexicographic key (id) order.
// Malformed entries are skipped, not fatal (§4.10, §7).
func (s *SQLiteRuleStore) LoadAll(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM rules ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Rule
	for rows.Next() {
		var idStr, payload string
		if err := rows.Scan(&idStr, &payload); err != nil {
			return nil, err
		}
		id, err := domain.ParseRuleId(idStr)
		if err != nil {
			continue
		}
		var row ruleRow
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			continue
		}
		result = append(result, fromRow(id, row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

