package diagctx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")

	store, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	store.Mutate("case1", func(c *Context) {
		c.PrimarySystem = "water_pump"
		c.MarkStepCompleted("wp_1")
		c.AddFact(FactObservation, SourceTechnician, "pump is silent", "wp_1")
	})

	ctx, ok := store.Peek("case1")
	require.True(t, ok)
	require.Equal(t, "water_pump", ctx.PrimarySystem)
	require.Equal(t, []string{"wp_1"}, ctx.CompletedSteps)
	require.Len(t, ctx.Facts, 1)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")

	store, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)

	store.Mutate("case1", func(c *Context) {
		c.MarkStepCompleted("wp_1")
		c.MarkStepUnable("wp_3")
	})
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	ctx, ok := reopened.Peek("case1")
	require.True(t, ok)
	require.Equal(t, []string{"wp_1"}, ctx.CompletedSteps)
	require.Equal(t, []string{"wp_3"}, ctx.UnableSteps)
}

func TestSQLiteStoreApplyMissingCase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")

	store, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	ok := store.Apply("ghost", func(c *Context) {
		t.Fatal("mutation ran against a missing case")
	})
	require.False(t, ok)
}

func TestSQLiteStoreDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")

	store, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	store.Mutate("case1", func(c *Context) {})
	store.Delete("case1")

	_, ok := store.Peek("case1")
	require.False(t, ok)
}
