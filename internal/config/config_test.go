package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/girona-rent/internal/lookup"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, "17907", cfg.Sections.INEPrefix)
	assert.Equal(t, "179072", cfg.Sections.IDESCATPrefix)
	assert.Equal(t, "ISO-8859-1", cfg.Sections.NeighbourhoodsEncoding)
	assert.Equal(t, 2026, cfg.Listings.DefaultYear)
	assert.False(t, cfg.Listings.KeepUnassigned)
	assert.InDelta(t, 500, cfg.Services.RadiusM, 1e-9)
	assert.Equal(t, []string{"education", "food", "health", "mobility", "public_service"}, cfg.Services.Categories)
	assert.Equal(t, "EPSG:3857", cfg.Services.CRS)
	assert.Equal(t, "planar", cfg.Services.Metric)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join("data", "girona-rent.db"), cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, filepath.Join("data", "seccions_girona", "Seccions.shp"), cfg.Paths.Sections)
	assert.Equal(t, filepath.Join("data", "interim", "girona_for_rent_combined_clean.csv"), cfg.Paths.Combined)
	assert.Equal(t, filepath.Join("data", "girona_for_rent_final.csv"), cfg.Paths.Final)
	assert.Empty(t, cfg.Paths.Schema)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data_dir: /srv/girona
workers: 3
services:
  radius_m: 250
  categories: [food, health]
paths:
  final: /tmp/final.csv
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.InDelta(t, 250, cfg.Services.RadiusM, 1e-9)
	assert.Equal(t, []string{"food", "health"}, cfg.Services.Categories)
	assert.Equal(t, "/tmp/final.csv", cfg.Paths.Final)
	assert.Equal(t, filepath.Join("/srv/girona", "initial", "girona_services.csv"), cfg.Paths.Services)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "17907", cfg.Sections.INEPrefix)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("GIRONA_STORE_DRIVER", "postgres")
	t.Setenv("GIRONA_STORE_DATABASE_URL", "postgres://localhost/girona")
	t.Setenv("GIRONA_LOG_LEVEL", "warn")
	t.Setenv("GIRONA_PATHS_SOCIO", "/data/socio.xlsx")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/girona", cfg.Store.DatabaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/data/socio.xlsx", cfg.Paths.Socio)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults() *Config {
	cfg := &Config{DataDir: "data", Workers: 4}
	cfg.Store.Driver = "sqlite"
	cfg.Listings.DefaultYear = 2026
	cfg.Sections.INEPrefix = "17907"
	cfg.Sections.IDESCATPrefix = "179072"
	cfg.Services.RadiusM = 500
	cfg.Services.Categories = []string{"food"}
	cfg.Services.CRS = "EPSG:3857"
	cfg.Services.Metric = "planar"
	cfg.resolvePaths()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, stage := range []string{StageSections, StageAssign, StageCertificates, StageServices, StageSocio, StageView, StageRun, StageRuns} {
		assert.NoError(t, cfg.Validate(stage), stage)
	}
}

func TestIsStage(t *testing.T) {
	for _, stage := range []string{StageSections, StageRun, StageRuns, StageView} {
		assert.True(t, IsStage(stage), stage)
	}
	for _, name := range []string{"help", "completion", "__complete", "girona-rent", ""} {
		assert.False(t, IsStage(name), name)
	}
}

func TestValidate_Services(t *testing.T) {
	cfg := validDefaults()
	cfg.Services.RadiusM = 0
	cfg.Services.Categories = nil
	cfg.Services.CRS = "EPSG:4326"

	err := cfg.Validate(StageServices)
	require.Error(t, err)
	assert.True(t, lookup.IsConfiguration(err))
	assert.Contains(t, err.Error(), "services.radius_m must be > 0")
	assert.Contains(t, err.Error(), "services.categories must not be empty")
	assert.Contains(t, err.Error(), "must be projected")

	cfg = validDefaults()
	cfg.Services.CRS = "EPSG:4326"
	cfg.Services.Metric = "haversine"
	assert.NoError(t, cfg.Validate(StageServices))

	cfg.Services.Metric = "taxicab"
	assert.ErrorContains(t, cfg.Validate(StageServices), "services.metric")
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(StageView), "store.database_url is required")

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(StageView), "store.driver")
}

func TestValidate_Sections(t *testing.T) {
	cfg := validDefaults()
	cfg.Sections.CRS = "EPSG:2154"
	assert.ErrorContains(t, cfg.Validate(StageSections), "sections.crs")

	cfg = validDefaults()
	cfg.Sections.INEPrefix = ""
	assert.ErrorContains(t, cfg.Validate(StageRun), "ine_prefix")
}

func TestValidate_Workers(t *testing.T) {
	cfg := validDefaults()
	cfg.Workers = 0
	assert.ErrorContains(t, cfg.Validate(StageView), "workers must be between 1 and 256")
}

func TestValidate_UnknownStage(t *testing.T) {
	assert.ErrorContains(t, validDefaults().Validate("maps"), "unknown stage")
}
