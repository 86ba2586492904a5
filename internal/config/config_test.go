package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangasrc/internal/providers/generic"
	"github.com/brogergvhs/mangasrc/internal/transport"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "mangasrc")
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	def := DefaultConfig()
	def.Browser.SettleBudget = 7 * time.Second
	require.NoError(t, SaveYAML(def, path))

	got, err := loadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, got.Browser.SettleBudget)
	assert.Equal(t, def.Transport.Relays, got.Transport.Relays)
	assert.Equal(t, def.Ceilings, got.Ceilings)
	require.Len(t, got.Sources, len(def.Sources))
	assert.Equal(t, transport.Relayed, got.Sources[0].Transport)
	assert.Equal(t, def.Sources[1].Reader.Keys, got.Sources[1].Reader.Keys)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image_workers: 9\nbrowser:\n  headless: false\n"), 0644))

	got, err := loadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 9, got.ImageWorkers)
	assert.False(t, got.Browser.Headless)
	assert.Equal(t, DefaultConfig().Browser.NavigateBudget, got.Browser.NavigateBudget)
	assert.Empty(t, got.Sources)

	require.NoError(t, normalizeDefaults(got))
	assert.Len(t, got.Sources, len(generic.DefaultProfiles()))
}

func TestLoadMergedWithoutConfig(t *testing.T) {
	isolate(t)

	cfg, used, err := LoadMerged(Options{Headful: true, Addr: ":9999", Output: "out"})
	require.NoError(t, err)
	assert.Contains(t, used, "default config in memory")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "out", cfg.Output)
}

func TestDuplicateSourcesRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = append(cfg.Sources, cfg.Sources[0])
	assert.Error(t, normalizeDefaults(cfg))
}

func TestProfileLifecycle(t *testing.T) {
	root := isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "configs", "Default.yaml"), path)

	_, err = CreateEmptyConfig("work")
	require.NoError(t, err)
	_, err = CreateEmptyConfig("work")
	assert.Error(t, err)

	require.NoError(t, SwitchConfig("work"))
	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.True(t, list[1].Active)

	cfg, used, err := LoadMerged(Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "configs", "work.yaml"), used)
	assert.NotEmpty(t, cfg.Sources)

	require.NoError(t, RemoveConfig("work", false))
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, DefaultLabel, label)

	assert.Error(t, RemoveConfig(DefaultLabel, true))
}

func TestSwitchRefusesBrokenProfile(t *testing.T) {
	root := isolate(t)

	_, err := InitDefaultConfig()
	require.NoError(t, err)

	broken := DefaultConfig()
	broken.Sources = append(broken.Sources, broken.Sources[0])
	require.NoError(t, SaveYAML(broken, filepath.Join(root, "configs", "broken.yaml")))

	err = SwitchConfig("broken")
	assert.ErrorContains(t, err, "defined twice")
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, DefaultLabel, label)

	cfg, err := LoadLabel(DefaultLabel)
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, len(generic.DefaultProfiles()))

	_, err = LoadLabel("missing")
	assert.ErrorContains(t, err, "does not exist")
}

func TestPathForRejectsEscapes(t *testing.T) {
	isolate(t)

	for _, bad := range []string{"", " ", "../x", `a\b`, ".."} {
		_, err := PathFor(bad)
		assert.Error(t, err, bad)
	}

	p, err := PathFor("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok.yaml", filepath.Base(p))
}
