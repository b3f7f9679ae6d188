package persistence_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/migrations"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func sampleRule() *domain.Rule {
	r := domain.NewRule(
		"porch light on motion",
		[]domain.EventDescriptor{{
			Kind:        domain.DescriptorThingBound,
			EventTypeId: domain.EventTypeId(domain.NewThingId()),
			ThingId:     domain.NewThingId(),
		}},
		domain.StateEvaluator{},
		domain.TimeDescriptor{},
		[]domain.RuleAction{{
			Kind:         domain.RuleActionThing,
			ThingId:      domain.NewThingId(),
			ActionTypeId: domain.ActionTypeId(domain.NewThingId()),
		}},
		nil,
	)
	return r
}

func TestSQLiteRuleStore_SaveLoadDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.RunSQLite(ctx, db))

	store := persistence.NewSQLiteRuleStore(db)
	r := sampleRule()
	require.NoError(t, store.Save(ctx, r))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, r.Id, loaded[0].Id)
	assert.Equal(t, r.Name, loaded[0].Name)
	assert.Equal(t, r.EventDescriptors[0].ThingId, loaded[0].EventDescriptors[0].ThingId)
	assert.Equal(t, r.Actions[0].ThingId, loaded[0].Actions[0].ThingId)

	// Save again with the same id upserts rather than duplicating.
	r.Name = "porch light, renamed"
	require.NoError(t, store.Save(ctx, r))
	loaded, err = store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "porch light, renamed", loaded[0].Name)

	require.NoError(t, store.Delete(ctx, r.Id))
	loaded, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteRuleStore_DeleteAbsentIdIsNotAnError(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.RunSQLite(ctx, db))

	store := persistence.NewSQLiteRuleStore(db)
	assert.NoError(t, store.Delete(ctx, domain.NewRuleId()))
}
