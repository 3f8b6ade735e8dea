package pipeline

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/girona-rent/internal/lookup"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// Schema names the columns each stage reads from its inputs.
type Schema struct {
	Listings     ListingsSchema `yaml:"listings"`
	Sections     SectionsSchema `yaml:"sections"`
	Certificates JoinSchema     `yaml:"certificates"`
	Socio        JoinSchema     `yaml:"socio"`
	Services     ServicesSchema `yaml:"services"`
}

// ListingsSchema names the rental listing columns.
type ListingsSchema struct {
	Lat   string `yaml:"lat"`
	Lon   string `yaml:"lon"`
	Year  string `yaml:"year"`
	Price string `yaml:"price"`
	Area  string `yaml:"area"`
}

// SectionsSchema names the attributes of the section and neighbourhood layers.
type SectionsSchema struct {
	District      string `yaml:"district"`
	Section       string `yaml:"section"`
	Neighbourhood string `yaml:"neighbourhood"`
}

// FieldMap copies Source from the reference table into the output column
// Target, or Source when Target is empty.
type FieldMap struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Column returns the output column name.
func (f FieldMap) Column() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Source
}

// JoinSchema describes one as-of join against a reference table.
type JoinSchema struct {
	// Key is the entity column of the reference table.
	Key string `yaml:"key"`
	// RentKey is the matching column of the rental table.
	RentKey string `yaml:"rent_key"`
	// Year is parsed for the record year; YearFallback is tried when the
	// reference table has no Year column.
	Year         string     `yaml:"year"`
	YearFallback string     `yaml:"year_fallback"`
	Fields       []FieldMap `yaml:"fields"`
}

// Columns returns the output column names in order.
func (j JoinSchema) Columns() []string {
	out := make([]string, len(j.Fields))
	for i, f := range j.Fields {
		out[i] = f.Column()
	}
	return out
}

// ServicesSchema names the service table columns.
type ServicesSchema struct {
	Lat      string `yaml:"lat"`
	Lon      string `yaml:"lon"`
	Category string `yaml:"category"`
}

// DefaultSchema returns the built-in column layout.
func DefaultSchema() *Schema {
	var s Schema
	if err := yaml.Unmarshal(defaultSchemaYAML, &s); err != nil {
		panic("pipeline: embedded schema: " + err.Error())
	}
	return &s
}

// LoadSchema returns the default schema overlaid with the YAML file at path.
// An empty path returns the default.
func LoadSchema(path string) (*Schema, error) {
	s := DefaultSchema()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: read schema %s", path)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, lookup.AsConfiguration(eris.Wrapf(err, "pipeline: parse schema %s", path))
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every required column name is set and that join
// outputs do not repeat.
func (s *Schema) Validate() error {
	var errs []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, name+" is empty")
		}
	}
	need("listings.lat", s.Listings.Lat)
	need("listings.lon", s.Listings.Lon)
	need("listings.year", s.Listings.Year)
	need("listings.price", s.Listings.Price)
	need("listings.area", s.Listings.Area)
	need("sections.district", s.Sections.District)
	need("sections.section", s.Sections.Section)
	need("sections.neighbourhood", s.Sections.Neighbourhood)
	need("services.lat", s.Services.Lat)
	need("services.lon", s.Services.Lon)
	need("services.category", s.Services.Category)

	for _, js := range []struct {
		name string
		j    JoinSchema
	}{{"certificates", s.Certificates}, {"socio", s.Socio}} {
		name, j := js.name, js.j
		need(name+".key", j.Key)
		need(name+".rent_key", j.RentKey)
		if j.Year == "" && j.YearFallback == "" {
			errs = append(errs, name+" needs year or year_fallback")
		}
		if len(j.Fields) == 0 {
			errs = append(errs, name+".fields is empty")
		}
		seen := make(map[string]bool)
		for _, f := range j.Fields {
			need(name+".fields.source", f.Source)
			if seen[f.Column()] {
				errs = append(errs, name+" repeats output column "+f.Column())
			}
			seen[f.Column()] = true
		}
	}

	if len(errs) > 0 {
		return lookup.Configurationf("pipeline: schema: %s", strings.Join(errs, "; "))
	}
	return nil
}
