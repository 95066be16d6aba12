package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/policy"
	"github.com/spf13/cobra"
)

var decideFlags struct {
	addr    string
	health  string
	enemy   string
	ally    bool
	stuck   bool
	greedy  bool
	timeout time.Duration
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Ask a running policy server for an action",
	RunE:  runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.StringVar(&decideFlags.addr, "addr", "localhost:50061", "policy server address")
	f.StringVar(&decideFlags.health, "health", "mid", "health band: low, mid, high")
	f.StringVar(&decideFlags.enemy, "enemy", "high", "enemy range band: low (close), mid, high")
	f.BoolVar(&decideFlags.ally, "ally", false, "an ally is nearby")
	f.BoolVar(&decideFlags.stuck, "stuck", false, "the bot is stuck")
	f.BoolVar(&decideFlags.greedy, "greedy", false, "skip exploration")
	f.DurationVar(&decideFlags.timeout, "timeout", 5*time.Second, "rpc timeout")
}

func runDecide(cmd *cobra.Command, _ []string) error {
	state := game.State{
		Health:     game.ParseBand(decideFlags.health),
		EnemyRange: game.ParseBand(decideFlags.enemy),
		AllyNearby: decideFlags.ally,
		Stuck:      decideFlags.stuck,
	}
	if !state.Valid() {
		return fmt.Errorf("invalid state %s", state)
	}

	client, err := policy.NewClient(decideFlags.addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), decideFlags.timeout)
	defer cancel()

	action, err := client.DecideAction(ctx, state, decideFlags.greedy)
	if err != nil {
		return err
	}
	q, err := client.QValue(ctx, state, action)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s q=%.4f\n", action, q)
	return nil
}
