package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"HOMEPLAN_DB_PATH",
	"HOMEPLAN_DB_PATH_FILE",
	"HOMEPLAN_ATTACH_DIR",
	"HOMEPLAN_LOG_LEVEL",
	"HOMEPLAN_LOG_ENCODING",
	"HOMEPLAN_ACTOR",
	"HOMEPLAN_UNIT",
	"HOMEPLAN_REMOTE_FILE",
	"HOMEPLAN_REMOTE_VIEW",
	"HOMEPLAN_OUTPUT",
}

// isolate points HOME at a fresh directory, clears every HOMEPLAN_ variable
// and moves into a work directory below HOME. It returns HOME and the work
// directory.
func isolate(t *testing.T) (string, string) {
	t.Helper()
	home := t.TempDir()
	work := filepath.Join(home, "project")
	require.NoError(t, os.MkdirAll(work, 0755))
	t.Setenv("HOME", home)
	for _, name := range configEnv {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Chdir(work)
	return home, work
}

func sameFile(t *testing.T, want, got string) {
	t.Helper()
	// macOS /var -> /private/var
	wantResolved, _ := filepath.EvalSymlinks(want)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, wantResolved, gotResolved)
}

func TestFindEnvLocal_InCurrentDir(t *testing.T) {
	_, work := isolate(t)
	envPath := filepath.Join(work, ".env.local")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST=value"), 0644))

	sameFile(t, envPath, findEnvLocal())
}

func TestFindEnvLocal_InGrandparentDir(t *testing.T) {
	_, work := isolate(t)
	child := filepath.Join(work, "a", "b")
	require.NoError(t, os.MkdirAll(child, 0755))
	envPath := filepath.Join(work, ".env.local")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST=grandparent"), 0644))
	t.Chdir(child)

	sameFile(t, envPath, findEnvLocal())
}

func TestFindEnvLocal_ClosestWins(t *testing.T) {
	_, work := isolate(t)
	parent := filepath.Join(work, "a")
	child := filepath.Join(parent, "b")
	require.NoError(t, os.MkdirAll(child, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, ".env.local"), []byte("TEST=far"), 0644))
	closest := filepath.Join(parent, ".env.local")
	require.NoError(t, os.WriteFile(closest, []byte("TEST=near"), 0644))
	t.Chdir(child)

	sameFile(t, closest, findEnvLocal())
}

func TestFindEnvLocal_StopsAtHome(t *testing.T) {
	home, _ := isolate(t)
	// above HOME, never consulted
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(home), ".env.local"), []byte("X=1"), 0644))

	assert.Empty(t, findEnvLocal())
}

func TestLoad_Defaults(t *testing.T) {
	home, _ := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "homeplan", "homeplan.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, ".local", "share", "homeplan", "attachments"), cfg.AttachDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, "Planner", cfg.RemoteView)
	assert.Empty(t, cfg.RemoteFile)

	actor, err := cfg.Actor()
	require.NoError(t, err)
	assert.Equal(t, domain.ActorHuman, actor)
	unit, err := cfg.Unit()
	require.NoError(t, err)
	assert.Equal(t, domain.UnitInches, unit)
}

func TestLoad_ProjectLocalDatabase(t *testing.T) {
	_, work := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".homeplan"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, LocalDBPath), nil, 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LocalDBPath, cfg.DBPath)
	assert.Equal(t, filepath.Join(".homeplan", "attachments"), cfg.AttachDir)
}

func TestLoad_Precedence(t *testing.T) {
	home, work := isolate(t)
	yamlDir := filepath.Join(home, ".config", "homeplan")
	require.NoError(t, os.MkdirAll(yamlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte(
		"db_path: /yaml/plan.db\nunit: cm\nremote_view: FromYAML\noutput: yaml\nlog_level: debug\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(work, ".env.local"), []byte(
		"HOMEPLAN_REMOTE_VIEW=FromDotenv\nHOMEPLAN_OUTPUT=json\n"), 0644))
	t.Setenv("HOMEPLAN_OUTPUT", "tsv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/yaml/plan.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "FromDotenv", cfg.RemoteView)
	assert.Equal(t, "tsv", cfg.Output)
	unit, err := cfg.Unit()
	require.NoError(t, err)
	assert.Equal(t, domain.UnitCm, unit)
}

func TestLoad_DBPathFromFile(t *testing.T) {
	_, work := isolate(t)
	secret := filepath.Join(work, "db_path")
	require.NoError(t, os.WriteFile(secret, []byte("/secret/plan.db\n"), 0644))
	t.Setenv("HOMEPLAN_DB_PATH_FILE", secret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/secret/plan.db", cfg.DBPath)
}

func TestLoad_BadYAML(t *testing.T) {
	home, _ := isolate(t)
	yamlDir := filepath.Join(home, ".config", "homeplan")
	require.NoError(t, os.MkdirAll(yamlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte("db_path: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestConfigActor(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Actor
		wantErr bool
	}{
		{"", domain.ActorHuman, false},
		{"human", domain.ActorHuman, false},
		{" AI ", domain.ActorAI, false},
		{"import", "", true},
		{"bob", "", true},
	}
	for _, tt := range tests {
		got, err := (&Config{DefaultActor: tt.in}).Actor()
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
