// Package pipeline implements the file-to-file stages that build the Girona
// rental dataset: section resolution, point assignment, the two as-of joins,
// the service radius flags and the map view.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/girona-rent/internal/config"
	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/layer"
	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// Stage is one named unit of work. Output is the file it writes.
type Stage struct {
	Name   string
	Output string
	Run    func(ctx context.Context) (*Stats, error)
}

// RunOrder is the order in which the "run" stage executes the others.
var RunOrder = []string{
	config.StageSections,
	config.StageAssign,
	config.StageCertificates,
	config.StageServices,
	config.StageSocio,
	config.StageView,
}

// Pipeline runs the stages against the paths in its configuration.
type Pipeline struct {
	cfg    *config.Config
	schema *Schema
}

// New creates a Pipeline.
func New(cfg *config.Config, schema *Schema) *Pipeline {
	return &Pipeline{cfg: cfg, schema: schema}
}

// Stages resolves stage names, expanding "run" to RunOrder.
func (p *Pipeline) Stages(names ...string) ([]Stage, error) {
	var out []Stage
	for _, n := range names {
		if n == config.StageRun {
			s, err := p.Stages(RunOrder...)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
			continue
		}
		s, ok := p.stage(n)
		if !ok {
			return nil, lookup.Configurationf("pipeline: unknown stage %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Pipeline) stage(name string) (Stage, bool) {
	paths := p.cfg.Paths
	switch name {
	case config.StageSections:
		return Stage{Name: name, Output: paths.SectionsCSV, Run: p.runSections}, true
	case config.StageAssign:
		return Stage{Name: name, Output: paths.Combined, Run: p.runAssign}, true
	case config.StageCertificates:
		return Stage{Name: name, Output: paths.WithEnergy, Run: p.runCertificates}, true
	case config.StageServices:
		return Stage{Name: name, Output: paths.WithServices, Run: p.runServices}, true
	case config.StageSocio:
		return Stage{Name: name, Output: paths.Final, Run: p.runSocio}, true
	case config.StageView:
		return Stage{Name: name, Output: paths.View, Run: p.runView}, true
	}
	return Stage{}, false
}

func (p *Pipeline) sectionsCRS() (geo.CRS, error) {
	if p.cfg.Sections.CRS == "" {
		return geo.Unknown, nil
	}
	crs, err := geo.ParseCRS(p.cfg.Sections.CRS)
	return crs, lookup.AsConfiguration(err)
}

func (p *Pipeline) runSections(_ context.Context) (*Stats, error) {
	crs, err := p.sectionsCRS()
	if err != nil {
		return nil, err
	}
	sections, err := layer.Read(p.cfg.Paths.Sections, layer.Options{Encoding: p.cfg.Sections.Encoding, CRS: crs})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read sections")
	}
	neighbourhoods, err := layer.Read(p.cfg.Paths.Neighbourhoods, layer.Options{Encoding: p.cfg.Sections.NeighbourhoodsEncoding, CRS: crs})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read neighbourhoods")
	}
	zap.L().Info("pipeline: layers loaded",
		zap.Int("sections", len(sections.Features)),
		zap.Int("neighbourhoods", len(neighbourhoods.Features)),
		zap.Stringer("sections_crs", sections.CRS),
		zap.Stringer("neighbourhoods_crs", neighbourhoods.CRS),
	)

	resolved, stats, err := ResolveSections(sections, neighbourhoods, SectionOptions{
		Schema:        p.schema.Sections,
		INEPrefix:     p.cfg.Sections.INEPrefix,
		IDESCATPrefix: p.cfg.Sections.IDESCATPrefix,
	})
	if err != nil {
		return nil, err
	}
	if err := table.WriteCSV(p.cfg.Paths.SectionsCSV, SectionsTable(resolved, p.schema.Sections)); err != nil {
		return nil, err
	}
	if err := layer.WriteGeoJSON(p.cfg.Paths.SectionsGeoJSON, SectionsLayer(resolved, p.schema.Sections)); err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *Pipeline) runAssign(ctx context.Context) (*Stats, error) {
	l, err := layer.Read(p.cfg.Paths.SectionsGeoJSON, layer.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read resolved sections")
	}
	sections, err := SectionsFromLayer(l, p.schema.Sections)
	if err != nil {
		return nil, err
	}
	assignor, err := lookup.NewAssignor(sections, l.CRS)
	if err != nil {
		return nil, err
	}

	observed, err := table.Read(p.cfg.Paths.Real, table.ReadOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read listings")
	}
	synthetic, err := table.Read(p.cfg.Paths.Synthetic, table.ReadOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read synthetic listings")
	}
	combined := CombineListings(observed, synthetic, p.schema.Listings.Year, p.cfg.Listings.DefaultYear)
	zap.L().Info("pipeline: listings combined",
		zap.Int("observed", observed.Len()),
		zap.Int("synthetic", synthetic.Len()),
		zap.Int("sections", assignor.Len()),
	)

	out, stats, err := AssignSections(ctx, combined, assignor, AssignOptions{
		Lat:            p.schema.Listings.Lat,
		Lon:            p.schema.Listings.Lon,
		KeepUnassigned: p.cfg.Listings.KeepUnassigned,
		Workers:        p.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	return stats, table.WriteCSV(p.cfg.Paths.Combined, out)
}

func (p *Pipeline) joinOptions() JoinOptions {
	return JoinOptions{
		ReferenceYear: p.schema.Listings.Year,
		KeyPadWidth:   p.cfg.Join.KeyPadWidth,
		Workers:       p.cfg.Workers,
	}
}

func (p *Pipeline) runCertificates(ctx context.Context) (*Stats, error) {
	rent, certs, err := readPair(p.cfg.Paths.Combined, p.cfg.Paths.Certificates)
	if err != nil {
		return nil, err
	}
	out, stats, err := JoinCertificates(ctx, rent, certs, p.schema.Certificates, p.joinOptions())
	if err != nil {
		return nil, err
	}
	return stats, table.WriteCSV(p.cfg.Paths.WithEnergy, out)
}

func (p *Pipeline) runServices(ctx context.Context) (*Stats, error) {
	rent, services, err := readPair(p.cfg.Paths.WithEnergy, p.cfg.Paths.Services)
	if err != nil {
		return nil, err
	}
	crs, err := geo.ParseCRS(p.cfg.Services.CRS)
	if err != nil {
		return nil, lookup.AsConfiguration(err)
	}
	out, stats, err := FlagServices(ctx, rent, services, p.schema.Services, ServiceOptions{
		Lat:        p.schema.Listings.Lat,
		Lon:        p.schema.Listings.Lon,
		RadiusM:    p.cfg.Services.RadiusM,
		Categories: p.cfg.Services.Categories,
		CRS:        crs,
		Metric:     lookup.Metric(p.cfg.Services.Metric),
		Workers:    p.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	return stats, table.WriteCSV(p.cfg.Paths.WithServices, out)
}

func (p *Pipeline) runSocio(ctx context.Context) (*Stats, error) {
	rent, socio, err := readPair(p.cfg.Paths.WithServices, p.cfg.Paths.Socio)
	if err != nil {
		return nil, err
	}
	out, stats, err := JoinSociodemographic(ctx, rent, socio, p.schema.Socio, p.joinOptions())
	if err != nil {
		return nil, err
	}
	return stats, table.WriteCSV(p.cfg.Paths.Final, out)
}

func (p *Pipeline) runView(_ context.Context) (*Stats, error) {
	rent, err := table.Read(p.cfg.Paths.Combined, table.ReadOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read combined listings")
	}
	out, stats, err := BuildView(rent, p.schema.Listings)
	if err != nil {
		return nil, err
	}
	return stats, table.WriteCSV(p.cfg.Paths.View, out)
}

// readPair reads the rental table and one reference table.
func readPair(rentPath, refPath string) (*table.Table, *table.Table, error) {
	rent, err := table.Read(rentPath, table.ReadOptions{})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: read rental table")
	}
	ref, err := table.Read(refPath, table.ReadOptions{})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: read reference table")
	}
	return rent, ref, nil
}
