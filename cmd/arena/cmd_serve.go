package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/checkpoint"
	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/policy"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveFlags struct {
	addr    string
	version string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a checkpointed policy over gRPC",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default server.grpc_addr)")
	f.StringVar(&serveFlags.version, "version", "", "checkpoint to serve (default active)")
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	agent, err := qlearn.New[game.State](cfg.QLearn(), game.Actions(), rand.New(rand.NewPCG(cfg.Arena.Seed, 3)))
	if err != nil {
		return err
	}
	v, err := checkpoint.LoadAgent(store, agent, serveFlags.version)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	addr := serveFlags.addr
	if addr == "" {
		addr = cfg.Server.GRPCAddr
	}
	if addr == "" {
		return errors.New("no listen address: set --addr or server.grpc_addr")
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	gs := grpc.NewServer()
	policy.Register(gs, policy.NewServer(agent, logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		done := make(chan struct{})
		go func() { gs.GracefulStop(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			gs.Stop()
		}
	}()

	logger.Info("policy serving", "addr", lis.Addr().String(), "version", v.VersionID, "entries", v.Entries)
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("policy stopped")
	}
	return nil
}
