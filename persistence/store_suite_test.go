package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/tabletop/models"
)

// runStoreSuite checks the Store contract against any backend.
func runStoreSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing room", func(t *testing.T) {
		_, err := store.Load(ctx, "NOPE01")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("create then load", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, "AB12CD", "Crypt", "gm1"))

		rec, err := store.Load(ctx, "AB12CD")
		require.NoError(t, err)
		assert.Equal(t, "AB12CD", rec.ID)
		assert.Equal(t, "Crypt", rec.Name)
		assert.Equal(t, "gm1", rec.GMUserID)
		assert.Nil(t, rec.State.Config)
		assert.Empty(t, rec.State.Tokens)
		assert.Empty(t, rec.State.FogState.RevealedCells)
	})

	t.Run("create duplicate", func(t *testing.T) {
		err := store.Create(ctx, "AB12CD", "Other", "gm2")
		assert.ErrorIs(t, err, ErrRoomExists)
	})

	t.Run("save overwrites snapshot", func(t *testing.T) {
		cfg := models.MapConfig{GridSize: 60, SnapToGrid: true, Width: 800, Height: 600}
		snap := models.Snapshot{
			Config: &cfg,
			Tokens: []*models.Token{{
				ID:          "t1",
				OwnerUserID: "p1",
				Position:    models.Position{X: 120, Y: 60},
				Attrs:       map[string]json.RawMessage{"name": json.RawMessage(`"Goblin"`)},
			}},
			FogState: models.FogState{RevealedCells: []string{"3,4", "3,5"}},
		}
		require.NoError(t, store.Save(ctx, "AB12CD", snap))

		rec, err := store.Load(ctx, "AB12CD")
		require.NoError(t, err)
		require.NotNil(t, rec.State.Config)
		assert.Equal(t, cfg, *rec.State.Config)
		require.Len(t, rec.State.Tokens, 1)
		assert.Equal(t, "t1", rec.State.Tokens[0].ID)
		assert.Equal(t, "p1", rec.State.Tokens[0].OwnerUserID)
		assert.Equal(t, models.Position{X: 120, Y: 60}, rec.State.Tokens[0].Position)
		assert.JSONEq(t, `"Goblin"`, string(rec.State.Tokens[0].Attrs["name"]))
		assert.Equal(t, []string{"3,4", "3,5"}, rec.State.FogState.RevealedCells)
	})

	t.Run("save missing room", func(t *testing.T) {
		err := store.Save(ctx, "ZZZZZZ", models.Snapshot{})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("list by gm", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, "EF34GH", "Keep", "gm1"))
		require.NoError(t, store.Create(ctx, "IJ56KL", "Swamp", "gm2"))
		// make EF34GH the most recently updated room of gm1
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, store.Save(ctx, "EF34GH", models.Snapshot{}))

		rooms, err := store.ListByGM(ctx, "gm1")
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "EF34GH", rooms[0].ID)
		assert.Equal(t, "AB12CD", rooms[1].ID)

		none, err := store.ListByGM(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "AB12CD"))
		_, err := store.Load(ctx, "AB12CD")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "AB12CD"), ErrRecordNotFound)

		rooms, err := store.ListByGM(ctx, "gm1")
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, "EF34GH", rooms[0].ID)
	})
}
