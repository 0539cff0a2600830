package appctx

import (
	"path/filepath"
	"testing"

	"github.com/lherron/homeplan/internal/db"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("db", "", "Database path")
	cmd.Flags().String("actor", "", "Actor")
	cmd.Flags().String("unit", "", "Unit")
	cmd.Flags().String("log-level", "", "Log level")
	cmd.Flags().String("remote-file", "", "Remote file")
	cmd.Flags().StringP("output", "o", "", "Output format")
	cmd.Flags().Bool("porcelain", false, "Porcelain")
	return cmd
}

func testEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	dbPath := filepath.Join(home, "plan.db")
	t.Setenv("HOMEPLAN_DB_PATH", dbPath)
	t.Setenv("HOMEPLAN_ATTACH_DIR", filepath.Join(home, "attachments"))
	t.Setenv("HOMEPLAN_REMOTE_FILE", "")
	t.Setenv("HOMEPLAN_ACTOR", "")
	t.Setenv("HOMEPLAN_UNIT", "")
	t.Setenv("HOMEPLAN_OUTPUT", "")
	return dbPath
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	testEnv(t)

	app, err := Bootstrap(testCmd(), Options{NeedsDB: false})
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Config)
	assert.NotNil(t, app.Logger)
	assert.Nil(t, app.DB)
	assert.Nil(t, app.Planner)
	assert.Equal(t, domain.UnitInches, app.Unit)
}

func TestBootstrap_WithDB(t *testing.T) {
	dbPath := testEnv(t)

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	database.Close()

	app, err := Bootstrap(testCmd(), DefaultOptions())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.DB)
	require.NotNil(t, app.Planner)
	assert.Equal(t, domain.ActorHuman, app.Planner.Actor())
}

func TestBootstrap_PendingMigrations(t *testing.T) {
	testEnv(t)

	_, err := Bootstrap(testCmd(), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homeplan init")
}

func TestBootstrap_InitializingMigrates(t *testing.T) {
	testEnv(t)

	app, err := Bootstrap(testCmd(), Initializing())
	require.NoError(t, err)
	app.Close()

	app, err = Bootstrap(testCmd(), DefaultOptions())
	require.NoError(t, err)
	app.Close()
}

func TestBootstrap_FlagsOverrideConfig(t *testing.T) {
	testEnv(t)
	other := filepath.Join(t.TempDir(), "other.db")

	cmd := testCmd()
	require.NoError(t, cmd.Flags().Set("db", other))
	require.NoError(t, cmd.Flags().Set("actor", "ai"))
	require.NoError(t, cmd.Flags().Set("unit", "cm"))

	app, err := Bootstrap(cmd, Initializing())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, other, app.DB.Path())
	assert.Equal(t, domain.ActorAI, app.Planner.Actor())
	assert.Equal(t, domain.UnitCm, app.Unit)
}

func TestBootstrap_InvalidActor(t *testing.T) {
	testEnv(t)
	t.Setenv("HOMEPLAN_ACTOR", "robot")

	_, err := Bootstrap(testCmd(), Options{})
	assert.Error(t, err)
}

func TestRenderer(t *testing.T) {
	testEnv(t)
	t.Setenv("HOMEPLAN_OUTPUT", "yaml")

	app, err := Bootstrap(testCmd(), Options{})
	require.NoError(t, err)
	defer app.Close()

	cmd := testCmd()
	r, err := app.Renderer(cmd)
	require.NoError(t, err)
	assert.Equal(t, render.FormatYAML, r.Format())

	require.NoError(t, cmd.Flags().Set("output", "json"))
	r, err = app.Renderer(cmd)
	require.NoError(t, err)
	assert.Equal(t, render.FormatJSON, r.Format())

	require.NoError(t, cmd.Flags().Set("output", "xml"))
	_, err = app.Renderer(cmd)
	assert.Error(t, err)
}
