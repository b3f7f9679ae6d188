package domain

import "context"

// RuleStore is the persistence port (§4.10, §6.5): a keyed store of rules,
// loaded in lexicographic key order at startup and saved on every mutation.
type RuleStore interface {
	// Save upserts rule under its id.
	Save(ctx context.Context, rule *Rule) error

	// Delete removes the rule with the given id. Deleting an absent id is
	// not an error.
	Delete(ctx context.Context, id RuleId) error

	// LoadAll returns every persisted rule in lexicographic key order.
	// Malformed entries are skipped rather than aborting the load (§4.10,
	// §7 propagation rules); the SQLite and Postgres implementations do not
	// log them.
	LoadAll(ctx context.Context) ([]*Rule, error)
}
