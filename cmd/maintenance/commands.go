package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var flagJSON bool

func init() {
	for _, cmd := range []*cobra.Command{auditCmd, snapshotCmd, resolveCmd, pipelineCmd} {
		cmd.Flags().BoolVar(&flagJSON, "json", false, "output as JSON")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report overlapping tracking records per user",
	Long: `Audit scans the wishlist, collection and progress sets for (user, game)
pairs that appear in more than one set, and for same-set duplicates. It is a
pure read and is safe to run at any time. After a resolve pass all counts
must be zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := maint.Audit(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(report)
		}
		fmt.Printf("Wishlist/Collection overlaps: %d (%d users)\n", report.WishlistCollection.Count, len(report.WishlistCollection.Users))
		fmt.Printf("Collection/Progress overlaps: %d (%d users)\n", report.CollectionProgress.Count, len(report.CollectionProgress.Users))
		fmt.Printf("Wishlist/Progress overlaps:   %d (%d users)\n", report.WishlistProgress.Count, len(report.WishlistProgress.Users))
		fmt.Printf("Same-set duplicates:          %d\n", report.Duplicates)
		if report.Clean() {
			fmt.Println("No conflicts found.")
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Back up all three tracking sets",
	Long: `Snapshot copies every tracking row into the backup tables and verifies
the copy row counts against the live sets. Resolve refuses to run without a
verified snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := maint.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(snap)
		}
		fmt.Printf("Snapshot %s created (%d rows, verified)\n", snap.SnapshotID, snap.TotalRows())
		return nil
	},
}

var flagSnapshotID string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Collapse conflicting records to one surviving state per key",
	Long: `Resolve deletes every lower-priority record for each conflicting
(user, game) pair (Progress > Collection > Wishlist; same-kind duplicates
keep the most recent row) and writes one conflict log entry per deletion.
Work is chunked, one transaction per chunk, so the run can be cancelled and
resumed. A verified snapshot id is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshotID, err := uuid.Parse(flagSnapshotID)
		if err != nil {
			return fmt.Errorf("invalid --snapshot id: %w", err)
		}
		result, err := maint.Resolve(cmd.Context(), snapshotID)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(result)
		}
		fmt.Printf("Resolved %d pairs in %d chunks, %d log entries written\n",
			result.PairsResolved, result.Chunks, result.LogEntriesWritten)
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run audit, snapshot, resolve and the verification audit in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := maint.RunPipeline(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(report)
		}
		if report.Resolution == nil {
			fmt.Println("No conflicts found; nothing to resolve.")
			return nil
		}
		fmt.Printf("Snapshot %s; resolved %d pairs, %d log entries; post-audit clean\n",
			report.Snapshot.SnapshotID, report.Resolution.PairsResolved, report.Resolution.LogEntriesWritten)
		return nil
	},
}

var (
	logLimit  int
	logOffset int
)

var conflictLogCmd = &cobra.Command{
	Use:   "conflict-log",
	Short: "Show resolver decisions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := maint.ConflictLog(cmd.Context(), logLimit, logOffset)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&flagSnapshotID, "snapshot", "", "verified snapshot id (required)")
	_ = resolveCmd.MarkFlagRequired("snapshot")

	conflictLogCmd.Flags().IntVar(&logLimit, "limit", 50, "max entries to return")
	conflictLogCmd.Flags().IntVar(&logOffset, "offset", 0, "entries to skip")
}
