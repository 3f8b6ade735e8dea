package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/lookup"
)

// Stage names accepted by Validate.
const (
	StageSections     = "sections"
	StageAssign       = "assign"
	StageCertificates = "certificates"
	StageServices     = "services"
	StageSocio        = "socio"
	StageView         = "view"
	StageRun          = "run"
	StageRuns         = "runs"
)

// IsStage reports whether name is a command that needs a validated config.
// Built-ins such as help and completion are not.
func IsStage(name string) bool {
	switch name {
	case StageSections, StageAssign, StageCertificates, StageServices,
		StageSocio, StageView, StageRun, StageRuns:
		return true
	}
	return false
}

// Validate checks that the configuration is complete for the given stage.
// All problems are reported together as one ConfigurationError.
func (c *Config) Validate(stage string) error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if c.Workers < 1 || c.Workers > 256 {
		add("workers must be between 1 and 256")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	checkSections := func() {
		if c.Paths.Sections == "" || c.Paths.Neighbourhoods == "" {
			add("paths.sections and paths.neighbourhoods are required")
		}
		if c.Sections.INEPrefix == "" || c.Sections.IDESCATPrefix == "" {
			add("sections.ine_prefix and sections.idescat_prefix are required")
		}
		if c.Sections.CRS != "" {
			if _, err := geo.ParseCRS(c.Sections.CRS); err != nil {
				add("sections.crs: %v", err)
			}
		}
	}
	checkAssign := func() {
		if c.Listings.DefaultYear < 1000 || c.Listings.DefaultYear > 9999 {
			add("listings.default_year must be a four digit year")
		}
	}
	checkJoin := func() {
		if c.Join.KeyPadWidth < 0 {
			add("join.key_pad_width must be >= 0")
		}
	}
	checkServices := func() {
		s := c.Services
		if s.RadiusM <= 0 || math.IsNaN(s.RadiusM) || math.IsInf(s.RadiusM, 0) {
			add("services.radius_m must be > 0")
		}
		if len(s.Categories) == 0 {
			add("services.categories must not be empty")
		}
		crs, err := geo.ParseCRS(s.CRS)
		if err != nil {
			add("services.crs: %v", err)
		}
		switch lookup.Metric(s.Metric) {
		case lookup.MetricPlanar:
			if err == nil && !crs.Projected() {
				add("services.crs must be projected for the planar metric")
			}
		case lookup.MetricHaversine:
		default:
			add("services.metric must be planar or haversine, got %q", s.Metric)
		}
	}

	switch stage {
	case StageSections:
		checkSections()
	case StageAssign:
		checkAssign()
	case StageCertificates, StageSocio:
		checkJoin()
	case StageServices:
		checkServices()
	case StageView, StageRuns:
	case StageRun:
		checkSections()
		checkAssign()
		checkJoin()
		checkServices()
	default:
		add("unknown stage %q", stage)
	}

	if len(errs) > 0 {
		return lookup.Configurationf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
