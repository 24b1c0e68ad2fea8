// Command limlam assigns CO and catalog-tracer luminosities to a simulated
// halo catalog and writes the luminosity catalog used for mock maps and mock
// spectroscopic surveys.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/delaneydunne/joint-limlam-mocker/internal/abundance"
	"github.com/delaneydunne/joint-limlam-mocker/internal/api"
	"github.com/delaneydunne/joint-limlam-mocker/internal/catalogio"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/health"
	"github.com/delaneydunne/joint-limlam-mocker/internal/luminosity"
	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
	"github.com/delaneydunne/joint-limlam-mocker/internal/sfr"
)

var rootCmd = &cobra.Command{
	Use:           "limlam",
	Short:         "Halo catalog to line luminosity mocker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cull a halo catalog and assign luminosities",
	Long: `Read a halo catalog, cut it to the survey volume, assign CO and
catalog-tracer luminosities with correlated scatter, optionally down-sample
the catalog tracer and assign velocities, then write the result.

Models, coefficients, scatter and survey geometry come from LIMLAM_*
environment variables.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var (
	runHalos       string
	runOut         string
	runLuminosity  string
	runTrim        int
	runWriteAll    bool
	runVerbose     bool
	gridMassMin    float64
	gridMassMax    float64
	gridMassPoints int
	gridRedshifts  []float64
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&runVerbose, "verbose", "v", false, "debug logging (also LIMLAM_VERBOSE)")

	runCmd.Flags().StringVar(&runHalos, "halos", "", "input halo catalog (CSV)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "output luminosity catalog (CSV)")
	runCmd.Flags().StringVar(&runLuminosity, "luminosities", "", "reuse luminosities from an earlier run instead of computing them")
	runCmd.Flags().IntVar(&runTrim, "trim", 0, "write only the first N halos")
	runCmd.Flags().BoolVar(&runWriteAll, "all", false, "write every computed column")
	runCmd.MarkFlagRequired("halos")
	runCmd.MarkFlagRequired("out")

	sfrGridCmd.Flags().Float64Var(&gridMassMin, "mass-min", 1e10, "lowest halo mass (Msun)")
	sfrGridCmd.Flags().Float64Var(&gridMassMax, "mass-max", 1e14, "highest halo mass (Msun)")
	sfrGridCmd.Flags().IntVar(&gridMassPoints, "points", 9, "log-spaced mass points")
	sfrGridCmd.Flags().Float64SliceVar(&gridRedshifts, "z", []float64{2.4, 2.8, 3.4}, "redshifts")

	rootCmd.AddCommand(runCmd, sfrGridCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		newLogger().Error("limlam failed", "error", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if v, err := strconv.ParseBool(os.Getenv("LIMLAM_VERBOSE")); runVerbose || (err == nil && v) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// startOps serves the ops endpoint when LIMLAM_HTTP_ADDR is set. The
// returned function shuts it down.
func startOps(logger *slog.Logger, tracker *health.Tracker) (func(), error) {
	addr := os.Getenv("LIMLAM_HTTP_ADDR")
	if addr == "" {
		return func() {}, nil
	}
	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	srv := api.NewServer(addr, logger, tracker, authCfg, loadStreamConfig(logger))
	go func() {
		logger.Info("starting ops server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server listen error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}
	}, nil
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	runStart := time.Now()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := health.NewTracker()
	shutdown, err := startOps(logger, tracker)
	if err != nil {
		return err
	}
	defer shutdown()

	cullCfg := loadCullConfig(logger)
	lumCfg, err := loadLuminosityConfig(logger)
	if err != nil {
		return fmt.Errorf("invalid luminosity configuration: %w", err)
	}
	post := loadPostConfig(logger)
	sfrCfg := loadSFRConfig(logger)

	stage := func(name string, n int) error {
		tracker.SetStage(name, n)
		metrics.SetHalos(name, n)
		logger.Info("stage", "stage", name, "halos", n)
		return ctx.Err()
	}

	start := time.Now()
	cat, err := readCatalog(runHalos)
	if err != nil {
		return err
	}
	metrics.RecordStage("load", time.Since(start))
	tracker.MarkReady()
	if err := stage("load", cat.N()); err != nil {
		return err
	}

	start = time.Now()
	window, err := cat.Cull(cullCfg, logger)
	if err != nil {
		return fmt.Errorf("culling catalog: %w", err)
	}
	metrics.RecordStage("cull", time.Since(start))
	if err := stage("cull", cat.N()); err != nil {
		return err
	}

	if runLuminosity != "" {
		if err := reuseLuminosities(runLuminosity, cat); err != nil {
			return err
		}
	} else {
		lumCfg.Survey = abundance.Survey{FovX: cullCfg.FovX, FovY: cullCfg.FovY, ZMin: window.ZMin, ZMax: window.ZMax}
		cache := sfr.NewCache(sfr.SourceOpener(ctx, sfrCfg.Path, logger), logger)
		if sfrCfg.Extrapolate {
			// The first Get fixes how the table is built.
			if _, err := cache.Get(true); err != nil {
				return fmt.Errorf("building sfr table: %w", err)
			}
		}
		models := luminosity.NewModels(cache, logger).WithWorkers(sfrCfg.Workers)
		pipeline := luminosity.NewPipeline(models, logger)
		if err := pipeline.Run(ctx, cat, lumCfg); err != nil {
			return fmt.Errorf("assigning luminosities: %w", err)
		}
	}
	if err := stage("luminosity", cat.N()); err != nil {
		return err
	}

	if err := transform(cat, post, logger); err != nil {
		return err
	}
	if err := stage("transform", cat.N()); err != nil {
		return err
	}

	if err := writeCatalog(runOut, cat, catalogio.WriteOptions{Trim: runTrim, All: runWriteAll}); err != nil {
		return err
	}
	tracker.MarkDone()
	logger.Info("catalog written", "path", runOut, "halos", cat.N(), "duration_ms", time.Since(runStart).Milliseconds())
	return nil
}

// transform runs the optional catalog transforms.
func transform(cat *halo.Catalog, post postConfig, logger *slog.Logger) error {
	if post.ObserveOn {
		if cat.Lcat == nil {
			logger.Warn("observation cull requested without catalog luminosities, skipping")
		} else if err := cat.ObservationCull(post.Observe, logger); err != nil {
			return fmt.Errorf("observation cull: %w", err)
		}
	}
	if post.VelocitySet {
		if _, err := cat.AssignVelocities(post.Velocity); err != nil {
			return fmt.Errorf("assigning velocities: %w", err)
		}
	}
	if post.OffsetOn {
		if err := cat.OffsetVelocities(post.Offset); err != nil {
			return fmt.Errorf("offsetting velocities: %w", err)
		}
	}
	return nil
}

func readCatalog(path string) (*halo.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening halo catalog: %w", err)
	}
	defer f.Close()
	cat, err := catalogio.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return cat, nil
}

func reuseLuminosities(path string, cat *halo.Catalog) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening luminosities: %w", err)
	}
	defer f.Close()
	if err := catalogio.ReadLuminosities(f, cat); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func writeCatalog(path string, cat *halo.Catalog, opts catalogio.WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := catalogio.Write(f, cat, opts); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
