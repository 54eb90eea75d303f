package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floodcv/adapters/excel"
	"floodcv/adapters/geojson"
	"floodcv/adapters/sqlstore"
	"floodcv/app"
	"floodcv/domain/core"
	"floodcv/internal"
	"floodcv/internal/api"
	"floodcv/internal/config"
	"floodcv/internal/tuning"
	"floodcv/ports"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// options are the flags shared by every command.
type options struct {
	groupsDir    string
	featuresFile string
	seed         int64
	workers      int
	noStore      bool
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "floodcv",
		Short: "Nested cross-validation for flood classification",
		Long: `floodcv samples labelled points from flood events, tunes a random forest
with leave-one-group-out outer folds and reports per-fold metrics and
feature importances.

Settings come from the environment (a .env file is read when present);
flags override the seed and worker count.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.groupsDir, "groups", "data/groups", "Directory with one YYYY_MM_DD_label folder per flood event")
	rootCmd.PersistentFlags().StringVar(&opts.featuresFile, "features", "data/features.xlsx", "Feature stack workbook (.xlsx) or .csv")
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 42, "Random seed for sampling, models and random columns")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Concurrent folds and trees (0 keeps FLOODCV_WORKERS)")
	rootCmd.PersistentFlags().BoolVar(&opts.noStore, "no-store", false, "Do not checkpoint studies")

	rootCmd.AddCommand(
		newSampleCmd(opts),
		newFoldsCmd(opts),
		newDescribeCmd(opts),
		newRunCmd(opts),
		newStudiesCmd(opts),
		newServeCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds what every command builds from configuration and flags.
type env struct {
	cfg     *config.Config
	logger  *internal.Logger
	store   *sqlstore.Store
	service *app.AnalysisService
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

func setup(cmd *cobra.Command, opts *options, withStore bool) (*env, error) {
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Debug("no .env file found, using system environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Analysis.Seed = opts.seed
	}
	if opts.workers > 0 {
		cfg.Analysis.Workers = opts.workers
	}
	if err := config.ValidateAnalysis(&cfg.Analysis); err != nil {
		return nil, err
	}

	logger := internal.NewLogger(internal.ParseLevel(cfg.LogLevel))
	e := &env{cfg: cfg, logger: logger}

	var studies ports.StudyRepository
	if withStore && !opts.noStore {
		store, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		e.store = store
		studies = store
	}

	excelCfg := excel.DefaultExcelConfig()
	excelCfg.FilePath = opts.featuresFile
	e.service = app.NewAnalysisService(
		cfg.Analysis,
		geojson.NewProvider(opts.groupsDir, logger),
		excel.NewFeatureStackProvider(excelCfg, logger),
		studies,
		logger,
	)
	return e, nil
}

func writeJSON(path string, v interface{}) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSampleCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw sample points for every flood event",
		Long: `Draw flooded and non-flooded points inside every event's area of interest
and write them for the external feature pipeline, one sheet per event.

Example: floodcv sample --groups data/groups --out samples.xlsx --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			groups, err := geojson.NewProvider(opts.groupsDir, e.logger).LoadGroups(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.service.Sample(cmd.Context(), groups); err != nil {
				return err
			}
			writerCfg := excel.DefaultExcelConfig()
			writerCfg.FilePath = out
			if err := excel.NewSampleWriter(writerCfg, e.logger).WriteSamples(cmd.Context(), groups); err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Printf("%s: %d flooded, %d non-flooded\n", g.Name(), g.Sample.Flooded, g.Sample.NonFlooded)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "samples.xlsx", "Output workbook (.xlsx) or .csv")
	return cmd
}

func newFoldsCmd(opts *options) *cobra.Command {
	var innerK int

	cmd := &cobra.Command{
		Use:   "folds",
		Short: "Describe the outer folds and, optionally, their inner splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			session, err := e.service.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"session":  session.Key,
				"features": session.Features,
				"folds":    session.FoldSummaries(),
			}
			if innerK > 0 {
				inner, err := session.InnerSplits(innerK)
				if err != nil {
					return err
				}
				out["inner"] = inner
			}
			return writeJSON("-", out)
		},
	}

	cmd.Flags().IntVar(&innerK, "inner-k", 0, "Also show stratified inner splits with k folds")
	return cmd
}

func newDescribeCmd(opts *options) *cobra.Command {
	var method string
	var features []string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show feature correlation and value ranges per flood event",
		Long: `Correlate every pair of features within each event's samples, average the
absolute coefficients over events and list each feature's value range.

Example: floodcv describe --method spearman --feature vv --feature vh --feature dem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			session, err := e.service.Load(cmd.Context())
			if err != nil {
				return err
			}
			corr, err := e.service.Correlation(session, features, method)
			if err != nil {
				return err
			}
			ranges, err := e.service.Ranges(session, features)
			if err != nil {
				return err
			}
			return writeJSON("-", map[string]interface{}{
				"correlation": corr,
				"ranges":      ranges,
			})
		},
	}

	cmd.Flags().StringVar(&method, "method", "pearson", "Correlation coefficient: pearson or spearman")
	cmd.Flags().StringSliceVar(&features, "feature", nil, "Feature to include (repeatable; default all)")
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	var experimentFile string
	var out string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tune, evaluate and explain a random forest",
		Long: `Run an experiment: search hyperparameters, compare the best parameters with
the defaults on every outer fold and compute feature importances.

Interrupting the run stops the search at the next trial boundary; the trials
recorded so far stay in the study store.

Example: floodcv run --experiment experiments/sar_dem.yaml --out report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			exp := config.DefaultExperiment(e.cfg.Analysis)
			if experimentFile != "" {
				if exp, err = config.LoadExperiment(experimentFile, e.cfg.Analysis); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("seed") {
				exp.Seed = opts.seed
			}

			session, err := e.service.Load(cmd.Context())
			if err != nil {
				return err
			}
			report, err := e.service.Run(cmd.Context(), session, exp, printProgress)
			if err != nil {
				return err
			}
			for _, c := range report.Metrics {
				fmt.Fprintf(os.Stderr, "%-9s best %.4f ± %.4f  default %.4f ± %.4f  delta %+.4f\n",
					c.Metric, c.Best.Mean, c.Best.Std, c.Default.Mean, c.Default.Std, c.Delta)
			}
			return writeJSON(out, report)
		},
	}

	cmd.Flags().StringVar(&experimentFile, "experiment", "", "YAML experiment file")
	cmd.Flags().StringVar(&out, "out", "-", "Report output path (- for stdout)")
	return cmd
}

func printProgress(p tuning.Progress) {
	best := "n/a"
	if p.HasBest {
		best = fmt.Sprintf("%.4f", p.BestScore)
	}
	fmt.Fprintf(os.Stderr, "trial %d/%d %-10s score %.4f best %s elapsed %s remaining %s\n",
		p.Trial, p.NTrials, p.State, p.Score, best, p.Elapsed.Round(time.Second), p.Remaining.Round(time.Second))
}

func newStudiesCmd(opts *options) *cobra.Command {
	var objective string
	var limit int
	var analytics bool

	cmd := &cobra.Command{
		Use:   "studies [study-id]",
		Short: "List checkpointed studies or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noStore {
				return fmt.Errorf("studies needs the study store")
			}
			e, err := setup(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(args) == 1 {
				id, err := core.ParseStudyID(args[0])
				if err != nil {
					return err
				}
				if analytics {
					a, err := e.service.StudyAnalytics(cmd.Context(), id)
					if err != nil {
						return err
					}
					return writeJSON("-", a)
				}
				study, err := e.store.GetStudy(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON("-", study)
			}
			list, err := e.store.ListStudies(cmd.Context(), ports.StudyFilters{Objective: objective, Limit: limit})
			if err != nil {
				return err
			}
			return writeJSON("-", list)
		},
	}

	cmd.Flags().StringVar(&objective, "objective", "", "Only list studies with this objective")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum studies to list")
	cmd.Flags().BoolVar(&analytics, "analytics", false, "Show optimization history and parameter importances of the study")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			gin.SetMode(e.cfg.Server.GinMode)
			server := api.NewServer(e.service, app.NewRunRegistry(e.logger), e.logger)
			return server.ListenAndServe(cmd.Context(), ":"+e.cfg.Server.Port)
		},
	}
}
