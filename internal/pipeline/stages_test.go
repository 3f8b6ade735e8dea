package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/girona-rent/internal/config"
	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/layer"
	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/table"
)

func writeLayer(t *testing.T, path string, fields []string, attrs []map[string]string, geoms []*geom.MultiPolygon) {
	t.Helper()
	l := &layer.Layer{Name: filepath.Base(path), Fields: fields, CRS: geo.WGS84}
	for i := range attrs {
		l.Features = append(l.Features, layer.Feature{Attrs: attrs[i], Geometry: geoms[i]})
	}
	require.NoError(t, layer.WriteGeoJSON(path, l))
}

func writeTable(t *testing.T, path string, header []string, rows ...[]string) {
	t.Helper()
	require.NoError(t, table.WriteCSV(path, table.New(header, rows)))
}

// testPipelineConfig writes a two-section town with its reference tables
// and returns a config pointing at them.
func testPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	in := func(name string) string { return filepath.Join(dir, "in", name) }
	out := func(name string) string { return filepath.Join(dir, "out", name) }

	cfg := &config.Config{
		DataDir: dir,
		Workers: 2,
		Paths: config.PathsConfig{
			Sections:        in("sections.geojson"),
			Neighbourhoods:  in("barris.geojson"),
			Real:            in("real.csv"),
			Synthetic:       in("synthetic.csv"),
			Certificates:    in("certificates.csv"),
			Services:        in("services.csv"),
			Socio:           in("socio.csv"),
			SectionsCSV:     out("section_to_neighbourhood.csv"),
			SectionsGeoJSON: out("section_to_neighbourhood.geojson"),
			Combined:        out("combined.csv"),
			WithEnergy:      out("with_energy.csv"),
			WithServices:    out("with_services.csv"),
			Final:           out("final.csv"),
			View:            out("view.csv"),
		},
		Sections: config.SectionsConfig{INEPrefix: "17079", IDESCATPrefix: "170792"},
		Listings: config.ListingsConfig{DefaultYear: 2025},
		Services: config.ServicesConfig{RadiusM: 500, Categories: []string{"food"}, CRS: "EPSG:4326", Metric: "haversine"},
	}

	writeLayer(t, cfg.Paths.Sections, []string{"DISTRICTE", "SECCIÓ"},
		[]map[string]string{{"DISTRICTE": "1", "SECCIÓ": "1"}, {"DISTRICTE": "1", "SECCIÓ": "2"}},
		[]*geom.MultiPolygon{square(2.80, 41.97, 2.82, 41.99), square(2.82, 41.97, 2.84, 41.99)})
	writeLayer(t, cfg.Paths.Neighbourhoods, []string{"BARRIS"},
		[]map[string]string{{"BARRIS": "Centre"}, {"BARRIS": "Nord"}},
		[]*geom.MultiPolygon{square(2.79, 41.96, 2.825, 42.0), square(2.825, 41.96, 2.85, 42.0)})

	writeTable(t, cfg.Paths.Real, []string{"lat", "lon", "price", "area"},
		[]string{"41.98", "2.81", "900", "75"},
		[]string{"41.98", "2.83", "1000", "50"},
		[]string{"45.00", "2.81", "600", "40"},
	)
	writeTable(t, cfg.Paths.Synthetic, []string{"lat", "lon", "price", "area", "year_available"},
		[]string{"41.984", "2.811", "700", "70", "2019"},
	)
	writeTable(t, cfg.Paths.Certificates, []string{"census_tract", "data_entrada", "metres_cadastre", "emissions_de_co2", "qual_energia"},
		[]string{"1707901001", "2018-04-01", "70", "25", "C"},
		[]string{"1707901001", "2024-01-10", "75", "9", "A"},
		[]string{"1707901002", "2026-02-01", "50", "15", "B"},
	)
	writeTable(t, cfg.Paths.Services, []string{"lat", "lon", "category"},
		[]string{"41.983", "2.81", "food"},
	)

	socio := DefaultSchema().Socio
	header := []string{"census_tract", "year"}
	row := []string{"1707901001", "2020"}
	for _, f := range socio.Fields {
		header = append(header, f.Source)
		row = append(row, "10.5")
	}
	writeTable(t, cfg.Paths.Socio, header, row)
	return cfg
}

func TestPipeline_Stages(t *testing.T) {
	p := New(testPipelineConfig(t), DefaultSchema())

	stages, err := p.Stages(config.StageRun)
	require.NoError(t, err)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	assert.Equal(t, RunOrder, names)

	_, err = p.Stages("assign", "bogus")
	require.Error(t, err)
	assert.True(t, lookup.IsConfiguration(err))
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg := testPipelineConfig(t)
	p := New(cfg, DefaultSchema())
	stages, err := p.Stages(config.StageRun)
	require.NoError(t, err)

	run, err := NewRunner(newTestStore(t), nil, "").Run(context.Background(), stages)
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	require.Empty(t, run.Result.Error)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.Len(t, run.Result.Stages, len(RunOrder))

	sections, err := table.Read(cfg.Paths.SectionsCSV, table.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, sections.Len())
	assert.Equal(t, "Centre", sections.Value(0, "BARRIS"))
	assert.Equal(t, "Nord", sections.Value(1, "BARRIS"))

	final, err := table.Read(cfg.Paths.Final, table.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, final.Len(), "the listing outside every section is dropped")

	tests := []struct {
		name   string
		row    int
		tract  string
		year   string
		energy string
		food   string
		renta  string
	}{
		{"observed in centre", 0, "1707901001", "2025", "A", "1", "10.5"},
		{"observed in nord, certificate from the future", 1, "1707901002", "2025", "", "0", ""},
		{"synthetic before the socio release", 2, "1707901001", "2019", "C", "1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tract, final.Value(tt.row, ColCensusTractINE))
			assert.Equal(t, tt.year, final.Value(tt.row, "year_available"))
			assert.Equal(t, tt.energy, final.Value(tt.row, "qual_energia"))
			assert.Equal(t, tt.food, final.Value(tt.row, "has_food_within_500m"))
			assert.Equal(t, tt.renta, final.Value(tt.row, "renda_med"))
		})
	}

	view, err := table.Read(cfg.Paths.View, table.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, view.Len())
	assert.Equal(t, "12.00", view.Value(0, ColPricePerM2))
	assert.Equal(t, "20.00", view.Value(1, ColPricePerM2))
	assert.Equal(t, "Nord", view.Value(1, ColNeighbourhood))
}

func TestPipeline_MissingInputFailsRun(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.Paths.Real = filepath.Join(cfg.DataDir, "in", "missing.csv")
	p := New(cfg, DefaultSchema())
	stages, err := p.Stages(config.StageRun)
	require.NoError(t, err)

	run, err := NewRunner(newTestStore(t), nil, "").Run(context.Background(), stages)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.Len(t, run.Result.Stages, 2)
	assert.Contains(t, run.Result.Error, "stage assign")
}
