package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/danielpatrickdp/arenalearn/internal/checkpoint"
	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	last    int
	version string
	top     int
	jsonOut bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List checkpoints or show the largest values of one",
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.IntVar(&inspectFlags.last, "last", 20, "show N most recent versions")
	f.StringVar(&inspectFlags.version, "version", "", "show single version detail")
	f.IntVar(&inspectFlags.top, "top", 10, "entries to show in detail mode, by |value|")
	f.BoolVar(&inspectFlags.jsonOut, "json", false, "output as JSON instead of table")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if inspectFlags.version != "" {
		return runDetailMode(out, store, inspectFlags.version, inspectFlags.top, inspectFlags.jsonOut)
	}
	return runListMode(out, store, inspectFlags.last, inspectFlags.jsonOut)
}

// #region list-mode

type listRow struct {
	VersionID string `json:"version_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Entries   int    `json:"entries"`
	Active    bool   `json:"active"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runListMode(out io.Writer, store *checkpoint.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(out, "no versions found")
		return nil
	}
	var activeID string
	if cur, err := store.Current(); err == nil {
		activeID = cur.VersionID
	}

	// store returns newest first; print chronologically
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: v.VersionID,
			ParentID:  v.ParentID,
			Entries:   v.Entries,
			Active:    v.VersionID == activeID,
			Note:      v.Note,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(out, rows)
	}
	fmt.Fprintf(out, "%-1s %-36s  %7s  %-20s  %s\n", "", "Version", "Entries", "Time", "Note")
	for _, r := range rows {
		mark := " "
		if r.Active {
			mark = "*"
		}
		fmt.Fprintf(out, "%-1s %-36s  %7d  %-20s  %s\n", mark, r.VersionID, r.Entries, r.CreatedAt, r.Note)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailEntry struct {
	State  string  `json:"state"`
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

type detailView struct {
	VersionID string          `json:"version_id"`
	ParentID  string          `json:"parent_id,omitempty"`
	Entries   int             `json:"entries"`
	Eval      json.RawMessage `json:"eval,omitempty"`
	Top       []detailEntry   `json:"top"`
}

func runDetailMode(out io.Writer, store *checkpoint.Store, id string, top int, jsonOut bool) error {
	v, err := store.GetVersion(id)
	if err != nil {
		return err
	}
	rows, err := store.Load(id)
	if err != nil {
		return err
	}
	entries, err := checkpoint.DecodeRows[game.State, game.Action](rows)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return math.Abs(entries[i].Value) > math.Abs(entries[j].Value)
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}

	view := detailView{VersionID: v.VersionID, ParentID: v.ParentID, Entries: v.Entries}
	if v.MetricsJSON != "" {
		view.Eval = json.RawMessage(v.MetricsJSON)
	}
	for _, e := range entries {
		view.Top = append(view.Top, detailEntry{State: e.State.String(), Action: e.Action.String(), Value: e.Value})
	}

	if jsonOut {
		return printJSON(out, view)
	}
	fmt.Fprintf(out, "Version: %s\n", view.VersionID)
	if view.ParentID != "" {
		fmt.Fprintf(out, "Parent:  %s\n", view.ParentID)
	}
	fmt.Fprintf(out, "Entries: %d\n", view.Entries)
	for _, e := range view.Top {
		fmt.Fprintf(out, "  %-40s %-8s %10.4f\n", e.State, e.Action, e.Value)
	}
	return nil
}

// #endregion detail-mode

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
