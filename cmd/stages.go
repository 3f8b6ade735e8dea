package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/girona-rent/internal/config"
	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/monitoring"
	"github.com/sells-group/girona-rent/internal/pipeline"
)

var (
	keepUnassigned bool
	radiusFlag     float64
)

var stageCmds = []*cobra.Command{
	newStageCmd(config.StageSections, "Resolve census sections to neighbourhoods",
		"Dissolves the census section layer by district and section, assigns each section the neighbourhood it overlaps most, "+
			"and writes the section table and GeoJSON handoff."),
	newStageCmd(config.StageAssign, "Assign rental listings to census sections",
		"Combines observed and synthetic listings and appends the census section and neighbourhood of each (lat, lon)."),
	newStageCmd(config.StageCertificates, "Attach energy certificates",
		"Joins the latest energy certificate of each listing's census tract issued no later than the listing year."),
	newStageCmd(config.StageServices, "Flag nearby services",
		"Appends one 0/1 column per service category telling whether such a service lies within the radius."),
	newStageCmd(config.StageSocio, "Attach sociodemographic indicators",
		"Joins the latest sociodemographic indicators of each listing's census tract published no later than the listing year."),
	newStageCmd(config.StageView, "Build the map view",
		"Derives price per square metre and keeps the columns the web map reads."),
}

func newStageCmd(stage, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeStages(cmd, stage)
		},
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long:  "Runs sections, assign, certificates, services, socio and view, stopping at the first failure.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return executeStages(cmd, config.StageRun)
	},
}

// executeStages runs the named stages through the ledger-backed runner and
// prints a per-stage summary. A failed run is returned as an error.
func executeStages(cmd *cobra.Command, names ...string) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("keep-unassigned") {
		cfg.Listings.KeepUnassigned = keepUnassigned
	}
	if cmd.Flags().Changed("radius") {
		cfg.Services.RadiusM = radiusFlag
		if err := cfg.Validate(stageOf(cmd)); err != nil {
			return err
		}
	}

	schema, err := pipeline.LoadSchema(cfg.Paths.Schema)
	if err != nil {
		return err
	}
	stages, err := pipeline.New(cfg, schema).Stages(names...)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runner := pipeline.NewRunner(st, monitoring.NewRecorder(), cfg.Metrics.Textfile)
	run, err := runner.Run(ctx, stages)
	if err != nil {
		return eris.Wrap(err, "run stages")
	}

	formatRunResult(os.Stdout, run)
	if run.Status == model.RunStatusFailed {
		return eris.Errorf("run %s failed: %s", run.ID, run.Result.Error)
	}
	return nil
}

// formatRunResult writes one line per executed stage to w.
func formatRunResult(out io.Writer, run *model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run %s: %s\n", run.ID, run.Status)
	_, _ = fmt.Fprintln(w, "STAGE\tSTATUS\tIN\tOUT\tMATCHED\tMISSED\tWARNINGS\tDURATION\tOUTPUT")
	if run.Result != nil {
		for _, s := range run.Result.Stages {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%dms\t%s\n",
				s.Name, s.Status, s.RowsIn, s.RowsOut, s.Matched, s.Missed, s.WarningTotal(), s.Duration, s.Output)
		}
	}
	_ = w.Flush()
}

func init() {
	for _, c := range append(stageCmds, runCmd) {
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{stageCmds[1], runCmd} {
		c.Flags().BoolVar(&keepUnassigned, "keep-unassigned", false, "keep listings that fall in no census section")
	}
	for _, c := range []*cobra.Command{stageCmds[3], runCmd} {
		c.Flags().Float64Var(&radiusFlag, "radius", 0, "service search radius in metres (default from config)")
	}
}
