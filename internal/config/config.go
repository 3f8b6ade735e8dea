package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" mapstructure:"data_dir"`
	Workers  int            `yaml:"workers" mapstructure:"workers"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Sections SectionsConfig `yaml:"sections" mapstructure:"sections"`
	Listings ListingsConfig `yaml:"listings" mapstructure:"listings"`
	Join     JoinConfig     `yaml:"join" mapstructure:"join"`
	Services ServicesConfig `yaml:"services" mapstructure:"services"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig lists every input and output file of the pipeline. Empty
// entries are filled from DataDir by Load.
type PathsConfig struct {
	Schema string `yaml:"schema" mapstructure:"schema"`

	Sections       string `yaml:"sections" mapstructure:"sections"`
	Neighbourhoods string `yaml:"neighbourhoods" mapstructure:"neighbourhoods"`
	Real           string `yaml:"real" mapstructure:"real"`
	Synthetic      string `yaml:"synthetic" mapstructure:"synthetic"`
	Certificates   string `yaml:"certificates" mapstructure:"certificates"`
	Services       string `yaml:"services" mapstructure:"services"`
	Socio          string `yaml:"socio" mapstructure:"socio"`

	SectionsCSV     string `yaml:"sections_csv" mapstructure:"sections_csv"`
	SectionsGeoJSON string `yaml:"sections_geojson" mapstructure:"sections_geojson"`
	Combined        string `yaml:"combined" mapstructure:"combined"`
	WithEnergy      string `yaml:"with_energy" mapstructure:"with_energy"`
	WithServices    string `yaml:"with_services" mapstructure:"with_services"`
	Final           string `yaml:"final" mapstructure:"final"`
	View            string `yaml:"view" mapstructure:"view"`
}

// SectionsConfig configures census section resolution.
type SectionsConfig struct {
	INEPrefix              string `yaml:"ine_prefix" mapstructure:"ine_prefix"`
	IDESCATPrefix          string `yaml:"idescat_prefix" mapstructure:"idescat_prefix"`
	Encoding               string `yaml:"encoding" mapstructure:"encoding"`
	NeighbourhoodsEncoding string `yaml:"neighbourhoods_encoding" mapstructure:"neighbourhoods_encoding"`
	// CRS overrides .prj detection for both layers, e.g. "EPSG:25831".
	CRS string `yaml:"crs" mapstructure:"crs"`
}

// ListingsConfig configures the combined rental listings.
type ListingsConfig struct {
	DefaultYear    int  `yaml:"default_year" mapstructure:"default_year"`
	KeepUnassigned bool `yaml:"keep_unassigned" mapstructure:"keep_unassigned"`
}

// JoinConfig configures the as-of joins.
type JoinConfig struct {
	KeyPadWidth int `yaml:"key_pad_width" mapstructure:"key_pad_width"`
}

// ServicesConfig configures the radius service flags.
type ServicesConfig struct {
	RadiusM    float64  `yaml:"radius_m" mapstructure:"radius_m"`
	Categories []string `yaml:"categories" mapstructure:"categories"`
	CRS        string   `yaml:"crs" mapstructure:"crs"`
	Metric     string   `yaml:"metric" mapstructure:"metric"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// ConnectAttempts is how many times opening the ledger is tried.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GIRONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("sections.ine_prefix", "17907")
	v.SetDefault("sections.idescat_prefix", "179072")
	v.SetDefault("sections.neighbourhoods_encoding", "ISO-8859-1")
	v.SetDefault("listings.default_year", 2026)
	v.SetDefault("listings.keep_unassigned", false)
	v.SetDefault("join.key_pad_width", 0)
	v.SetDefault("services.radius_m", 500)
	v.SetDefault("services.categories", []string{"education", "food", "health", "mobility", "public_service"})
	v.SetDefault("services.crs", "EPSG:3857")
	v.SetDefault("services.metric", "planar")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Empty defaults register the keys so GIRONA_PATHS_* env vars reach Unmarshal.
	for _, k := range pathKeys {
		v.SetDefault("paths."+k, "")
	}
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("store.database_url", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.resolvePaths()

	return &cfg, nil
}

var pathKeys = []string{
	"schema", "sections", "neighbourhoods", "real", "synthetic", "certificates", "services", "socio",
	"sections_csv", "sections_geojson", "combined", "with_energy", "with_services", "final", "view",
}

// resolvePaths fills empty paths with the standard data directory layout.
func (c *Config) resolvePaths() {
	d := c.DataDir
	set := func(p *string, parts ...string) {
		if *p == "" {
			*p = filepath.Join(append([]string{d}, parts...)...)
		}
	}
	set(&c.Paths.Sections, "seccions_girona", "Seccions.shp")
	set(&c.Paths.Neighbourhoods, "barris_girona", "Barris.shp")
	set(&c.Paths.Real, "initial", "girona_for_rent.csv")
	set(&c.Paths.Synthetic, "initial", "girona_for_rent_synthetic.csv")
	set(&c.Paths.Certificates, "initial", "girona_energy_certificates.csv")
	set(&c.Paths.Services, "initial", "girona_services.csv")
	set(&c.Paths.Socio, "initial", "girona_sociodemographic.csv")
	set(&c.Paths.SectionsCSV, "section_to_neighbourhood_clean.csv")
	set(&c.Paths.SectionsGeoJSON, "section_to_neighbourhood_clean.geojson")
	set(&c.Paths.Combined, "interim", "girona_for_rent_combined_clean.csv")
	set(&c.Paths.WithEnergy, "interim", "girona_for_rent_with_energy.csv")
	set(&c.Paths.WithServices, "interim", "girona_for_rent_with_services_binary.csv")
	set(&c.Paths.Final, "girona_for_rent_final.csv")
	set(&c.Paths.View, "girona_rent_leaflet_view.csv")
	if c.Store.Driver == "sqlite" && c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = filepath.Join(d, "girona-rent.db")
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
