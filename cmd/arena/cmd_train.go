package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/arena"
	"github.com/danielpatrickdp/arenalearn/internal/checkpoint"
	"github.com/danielpatrickdp/arenalearn/internal/eval"
	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/logging"
	"github.com/danielpatrickdp/arenalearn/internal/metrics"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
	"github.com/danielpatrickdp/arenalearn/internal/train"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var trainFlags struct {
	fresh     bool
	note      string
	keepSkips bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run an arena session and checkpoint the learned table",
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.BoolVar(&trainFlags.fresh, "fresh", false, "start from an empty table instead of the active checkpoint")
	f.StringVar(&trainFlags.note, "note", "", "note stored with the checkpoint")
	f.BoolVar(&trainFlags.keepSkips, "keep-skips", false, "write skipped trainer steps to the training log")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	seed := cfg.Arena.Seed
	agent, err := qlearn.New[game.State](cfg.QLearn(), game.Actions(), rand.New(rand.NewPCG(seed, 1)))
	if err != nil {
		return err
	}
	if !trainFlags.fresh {
		v, err := checkpoint.LoadAgent(store, agent, "")
		switch {
		case err == nil:
			logger.Info("resumed checkpoint", "version", v.VersionID, "entries", v.Entries)
		case errors.Is(err, checkpoint.ErrNoActive):
			logger.Info("no active checkpoint, starting fresh")
		default:
			return fmt.Errorf("load checkpoint: %w", err)
		}
	}

	buf, err := replay.New[game.State, game.Action](cfg.Replay(), rand.New(rand.NewPCG(seed, 2)))
	if err != nil {
		return err
	}
	shaper, err := reward.New(cfg.Reward)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	runID := uuid.NewString()

	tr, err := train.New(buf, agent, cfg.Trainer,
		train.WithLogger[game.State, game.Action](logger),
		train.WithRecorder[game.State, game.Action](collector),
		train.WithSink[game.State, game.Action](logging.StepLogger{DB: store.DB(), RunID: runID, KeepSkips: trainFlags.keepSkips}),
		train.WithSchedule[game.State, game.Action](cfg.Exploration),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := metricsServer(addr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
		logger.Info("metrics listening", "addr", addr)
	}

	a, err := arena.New(cfg.Arena, agent, tr, shaper, tr, logger)
	if err != nil {
		return err
	}
	stats, err := a.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	note := trainFlags.note
	if note == "" {
		note = "run " + runID
	}
	v, result, err := checkpoint.SaveAgent(store, agent, eval.NewEvalHarness(cfg.Eval), note)
	if err != nil {
		if errors.Is(err, checkpoint.ErrRejected) {
			for _, m := range result.Metrics {
				logger.Warn("eval metric", "name", m.Name, "value", m.Value, "pass", m.Pass)
			}
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", runID)
	fmt.Fprintf(out, "Ticks:       %d (kills %d, deaths %d)\n", stats.Ticks, stats.Kills, stats.Deaths)
	fmt.Fprintf(out, "Reward:      %.2f\n", stats.TotalReward)
	fmt.Fprintf(out, "Train steps: %d (%d trained)\n", tr.Steps(), tr.Trained())
	fmt.Fprintf(out, "Checkpoint:  %s (%d entries)\n", v.VersionID, v.Entries)
	return nil
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
