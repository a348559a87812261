package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/couchcryptid/storm-data-windloss/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-data-windloss/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	"github.com/couchcryptid/storm-data-windloss/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run wind processing, spatial join and loss estimation",
	Long: `Run the selected steps for every scenario:

  1  raw wind swath -> <output>/processed_wind/<scenario>.csv
  2  processed wind + inventory -> <output>/joined_data/<scenario>/<scenario>.csv
  3  characterization (checkpointed) and losses -> <output>/results/

A step whose outputs already exist is skipped unless --force-rerun is set.
Environment variables configure logging, workers, the random seed, the
optional status server (HTTP_ADDR) and Kafka publishing (KAFKA_BROKERS).`,
	Example: `  # Full run with the default Ida scenarios
  windloss run --wind-dir data/wind --buildings data/nsi.csv --hazus-dir data/hazus --output-dir out

  # Losses only, reusing a pre-built checkpoint
  windloss run --steps 3 --checkpoint out/building_inventory/nsi_wbId_sr.csv --hazus-dir data/hazus --output-dir out`,
	RunE: runPipeline,
}

var runFlags struct {
	scenarios  []string
	windDir    string
	buildings  string
	hazusDir   string
	outputDir  string
	checkpoint string
	steps      string
	forceRerun bool
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringSliceVar(&runFlags.scenarios, "scenarios", nil, "scenario names (default: methodology scenarios)")
	f.StringVar(&runFlags.windDir, "wind-dir", "", "directory of raw wind swath CSVs named <scenario>.csv")
	f.StringVar(&runFlags.buildings, "buildings", "", "NSI building inventory CSV")
	f.StringVar(&runFlags.hazusDir, "hazus-dir", "", "directory holding Mapping.xlsx and huDamLossFunc.csv")
	f.StringVar(&runFlags.outputDir, "output-dir", "output", "output directory")
	f.StringVar(&runFlags.checkpoint, "checkpoint", "", "characterized inventory checkpoint (default <output>/building_inventory/nsi_wbId_sr.csv)")
	f.StringVar(&runFlags.steps, "steps", "1,2,3", "comma-separated steps to run")
	f.BoolVar(&runFlags.forceRerun, "force-rerun", false, "recompute outputs that already exist")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := config.LoadMethodology(methodologyPath)
	if err != nil {
		return err
	}
	steps, err := pipeline.ParseSteps(runFlags.steps)
	if err != nil {
		return err
	}
	scenarios := runFlags.scenarios
	if len(scenarios) == 0 {
		scenarios = m.Scenarios
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var sink pipeline.LossSink
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger, metrics)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka loss publishing enabled", "topic", cfg.KafkaLossTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(pipeline.Options{
		Scenarios:  scenarios,
		Steps:      steps,
		WindDir:    runFlags.windDir,
		Buildings:  runFlags.buildings,
		HazusDir:   runFlags.hazusDir,
		OutputDir:  runFlags.outputDir,
		Checkpoint: runFlags.checkpoint,
		ForceRerun: runFlags.forceRerun,
		Seed:       cfg.RandomSeed,
		Workers:    cfg.Workers,
	}, m, sink, clockwork.NewRealClock(), logger, metrics)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdown(srv, cfg, logger)
	}

	manifest, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if len(manifest.Results) > 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Scenario\tBuildings\tNo wind\tBuilding\tContents\tTotal\t")
		for _, r := range manifest.Results {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\t%.0f\t%.0f\t\n",
				r.Total.Scenario, r.Total.Buildings, r.WithoutWind,
				r.Total.StructureLoss, r.Total.ContentsLoss, r.Total.TotalLoss)
		}
		return w.Flush()
	}
	return nil
}

func shutdown(srv *httpadapter.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}
