package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ouladload/internal/config"
	"ouladload/internal/datasource/file"
	"ouladload/internal/etl"
	"ouladload/internal/logging"
	"ouladload/internal/metrics"
	"ouladload/internal/metrics/datadog"
	"ouladload/internal/metrics/prompush"
	"ouladload/internal/storage"
)

// loadFlags carries the load command's flag values. A flag left unset keeps
// whatever the config file (or the built-in default) says.
type loadFlags struct {
	configPath     string
	data           []string
	sourcesFile    string
	storageKind    string
	dsn            string
	batchSize      int
	reset          bool
	metricsBackend string
	pushgatewayURL string
	dogstatsdAddr  string
}

// NewLoadCmd creates the load command: run the execution plan against every
// configured source directory, resuming from checkpoints where they exist.
func NewLoadCmd() *cobra.Command {
	var flags loadFlags

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load source directories into the configured store",
		Example: `  # Load one extract into the default sqlite store
  ouladload load --data ./data/oulad

  # Fresh postgres load of two extracts, 50k rows per batch
  ouladload load --storage postgres --dsn postgres://etl@localhost/oulad \
    --data ./extract-2013 --data ./extract-2014 --batch-size 50000

  # Resume an interrupted load: rerun the same command
  ouladload load --data ./data/oulad`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "pipeline config JSON path")
	f.StringArrayVar(&flags.data, "data", nil, "source directory, repeatable; order is load order")
	f.StringVar(&flags.sourcesFile, "sources-file", "", "file listing one source directory per line")
	f.StringVar(&flags.storageKind, "storage", "", "storage backend: postgres, sqlite, mysql, mssql")
	f.StringVar(&flags.dsn, "dsn", "", "backend connection string")
	f.IntVar(&flags.batchSize, "batch-size", 0, "rows per committed batch")
	f.BoolVar(&flags.reset, "reset", false, "delete destination rows and checkpoints before loading")
	f.StringVar(&flags.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, dogstatsd")
	f.StringVar(&flags.pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway base URL")
	f.StringVar(&flags.dogstatsdAddr, "dogstatsd-addr", "", "DogStatsD agent address, e.g. 127.0.0.1:8125")

	return cmd
}

func runLoad(cmd *cobra.Command, flags loadFlags) error {
	p, err := buildPipeline(cmd, flags)
	if err != nil {
		return err
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		cmd.PrintErrf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration has errors")
	}
	if len(p.Load.Sources) == 0 {
		return fmt.Errorf("no source directories: pass --data, --sources-file, or set load.sources")
	}

	ctx := cmd.Context()

	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	setupMetrics(cmd, p)
	defer func() {
		if err := metrics.Flush(); err != nil {
			cmd.PrintErrf("metrics: flush: %v\n", err)
		}
	}()

	runner := etl.NewRunner(repo, p, logging.Component("etl"))

	start := time.Now()
	var results []etl.RunResult
	if len(p.Load.Sources) == 1 {
		res, runErr := runner.Run(ctx, p.Load.Sources[0])
		results = append(results, res)
		err = runErr
	} else {
		results, err = runner.RunAll(ctx, p.Load.Sources)
	}

	renderResults(cmd, results)

	if err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		for _, t := range res.Tables {
			if t.Err != nil {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d table load(s) failed", failed)
	}
	cmd.Printf("completed in %s\n", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// buildPipeline assembles the effective pipeline: config file (or defaults),
// then flag overrides, then normalization. Source directories given on the
// command line replace the config's list entirely.
func buildPipeline(cmd *cobra.Command, flags loadFlags) (config.Pipeline, error) {
	p := config.Default()
	if flags.configPath != "" {
		var err error
		p, err = config.FromFile(flags.configPath)
		if err != nil {
			return config.Pipeline{}, err
		}
	}

	set := cmd.Flags().Changed
	if set("storage") {
		p.Storage.Kind = flags.storageKind
	}
	if set("dsn") {
		p.Storage.DB.DSN = flags.dsn
	}
	if set("batch-size") {
		p.Load.BatchSize = flags.batchSize
	}
	if set("reset") {
		p.Load.Reset = flags.reset
	}
	if set("metrics-backend") {
		p.Metrics.Backend = flags.metricsBackend
	}
	if set("pushgateway-url") {
		p.Metrics.PushgatewayURL = flags.pushgatewayURL
	}
	if set("dogstatsd-addr") {
		p.Metrics.DogstatsdAddr = flags.dogstatsdAddr
	}

	sources := append([]string(nil), flags.data...)
	if flags.sourcesFile != "" {
		listed, err := file.ReadList(flags.sourcesFile)
		if err != nil {
			return config.Pipeline{}, fmt.Errorf("read sources file: %w", err)
		}
		sources = append(sources, listed...)
	}
	if len(sources) > 0 {
		p.Load.Sources = sources
	}

	p.Normalize()
	return p, nil
}

// setupMetrics installs the configured metrics backend. An unreachable or
// misconfigured backend downgrades to a warning; the nop backend stays and
// the load proceeds.
func setupMetrics(cmd *cobra.Command, p config.Pipeline) {
	switch p.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		url := p.Metrics.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(p.Job, url)
		if err != nil {
			cmd.PrintErrf("metrics: pushgateway backend unavailable: %v\n", err)
			return
		}
		metrics.SetBackend(b)
	case "dogstatsd":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DogstatsdAddr,
			Namespace:  p.Metrics.Options.String("namespace", ""),
			GlobalTags: p.Metrics.Options.StringSlice("tags"),
		})
		if err != nil {
			cmd.PrintErrf("metrics: dogstatsd backend unavailable: %v\n", err)
			return
		}
		metrics.SetBackend(b)
	default:
		cmd.PrintErrf("metrics: unknown backend %q; metrics disabled\n", p.Metrics.Backend)
	}
}

func renderResults(cmd *cobra.Command, results []etl.RunResult) {
	for _, res := range results {
		if len(res.Tables) == 0 {
			continue
		}
		cmd.Printf("\nsource %s: %s records in %d files\n",
			res.Source, humanize.Comma(res.Summary.TotalRecords), len(res.Summary.Files))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tSTATE\tBATCHES\tROWS\tTIME")
		for _, t := range res.Tables {
			state := string(t.State)
			if t.Resumed {
				state = fmt.Sprintf("%s (resumed, %d skipped)", t.State, t.Skipped)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				t.Table, state, t.Committed, humanize.Comma(t.Rows),
				t.Duration.Truncate(time.Millisecond))
		}
		w.Flush()

		for _, t := range res.Tables {
			if t.Err != nil {
				cmd.PrintErrf("error: %v\n", t.Err)
			}
		}
	}
}
