package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRuleStore implements domain.RuleStore against a Postgres
// database, for multi-instance deployments that need a shared rule store
// rather than one SQLite file per instance. Mirrors SQLiteRuleStore's
// single-JSON-document-per-rule shape, using jsonb instead of a text
// column.
type PostgresRuleStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRuleStore(pool *pgxpool.Pool) *PostgresRuleStore {
	return &PostgresRuleStore{pool: pool}
}

func (s *PostgresRuleStore) Save(ctx context.Context, r *domain.Rule) error {
	payload, err := json.Marshal(toRow(r))
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", r.Id, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rules (id, payload) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload
	`, r.Id.String(), payload)
	return err
}

func (s *PostgresRuleStore) Delete(ctx context.Context, id domain.RuleId) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id.String())
	return err
}

func (s *PostgresRuleStore) LoadAll(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, payload FROM rules ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Rule
	for rows.Next() {
		var idStr string
		var payload []byte
		if err := rows.Scan(&idStr, &payload); err != nil {
			return nil, err
		}
		id, err := domain.ParseRuleId(idStr)
		if err != nil {
			continue
		}
		var row ruleRow
		if err := json.Unmarshal(payload, &row); err != nil {
			continue
		}
		result = append(result, fromRow(id, row))
	}
	return result, rows.Err()
}
