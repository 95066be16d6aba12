package main

import (
	"fmt"

	"github.com/danielpatrickdp/arenalearn/internal/episode"
	"github.com/spf13/cobra"
)

var replayFlags struct {
	fixture string
	verbose bool
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded fixture through the training pipeline",
	Long:  "replay feeds each fixture transition through reward shaping, the replay\nbuffer and one trainer step, then compares decisions with expected_results.",
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.fixture, "fixture", "", "path to fixture JSON (required)")
	f.BoolVarP(&replayFlags.verbose, "verbose", "v", false, "print every transition")
	_ = replayCmd.MarkFlagRequired("fixture")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	fix, err := episode.LoadFixture(replayFlags.fixture)
	if err != nil {
		return err
	}
	run, err := episode.Replay(fix.ToTransitions(), fix.Config.ToConfig())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fix.Description != "" {
		fmt.Fprintf(out, "Fixture: %s\n", fix.Description)
	}
	if replayFlags.verbose {
		for _, r := range run.Results {
			fmt.Fprintf(out, "  %-12s %-6s reward=%8.3f q=%8.4f %s\n", r.ID, r.Action, r.Reward, r.QValue, r.Reason)
		}
	}

	expected := make(map[string]string, len(fix.ExpectedResults))
	for _, e := range fix.ExpectedResults {
		expected[e.ID] = e.Action
	}
	mismatches := 0
	for _, r := range run.Results {
		want, ok := expected[r.ID]
		if !ok || want == r.Action {
			continue
		}
		mismatches++
		fmt.Fprintf(out, "MISMATCH %s: got %s, want %s\n", r.ID, r.Action, want)
	}

	s := episode.Summarize(run)
	fmt.Fprintf(out, "Transitions: %d (train %d, skip %d, reject %d)\n", s.TotalTransitions, s.Trained, s.Skipped, s.Rejected)
	fmt.Fprintf(out, "Reward:      %.3f\n", s.TotalReward)
	fmt.Fprintf(out, "Entries:     %d\n", s.TableEntries)
	fmt.Fprintf(out, "Final beta:  %.4f\n", s.FinalBeta)

	if mismatches > 0 {
		return fmt.Errorf("%d of %d transitions did not match expected_results", mismatches, len(run.Results))
	}
	return nil
}
