package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo enforcement (soft) or restore a backup snapshot (hard)",
}

var rollbackSoftCmd = &cobra.Command{
	Use:   "soft",
	Short: "Disable guard enforcement without touching data",
	Long: `Soft rollback turns off the exclusivity guard so writes pass through
unchecked, as they did before enforcement. No data is modified. Running it
when enforcement is already off is a no-op. Use "reinstate" to turn the
guard back on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		changed, err := maint.SoftRollback(cmd.Context())
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("Guard enforcement disabled.")
		} else {
			fmt.Println("Guard enforcement was already disabled.")
		}
		return nil
	},
}

var (
	hardSnapshotID string
	hardConfirmed  bool
)

var rollbackHardCmd = &cobra.Command{
	Use:   "hard",
	Short: "Restore tracking sets from a snapshot and disable enforcement",
	Long: `Hard rollback replaces all three tracking sets with the snapshot's rows
and disables guard enforcement in the same transaction. Every tracking write
made after the snapshot is destroyed. The restore verifies row counts against
the snapshot before committing. Requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !hardConfirmed {
			return fmt.Errorf("hard rollback destroys writes made after the snapshot; re-run with --yes to confirm")
		}
		snapshotID, err := uuid.Parse(hardSnapshotID)
		if err != nil {
			return fmt.Errorf("invalid --snapshot id: %w", err)
		}
		snap, err := maint.HardRollback(cmd.Context(), snapshotID)
		if err != nil {
			return err
		}
		fmt.Printf("Restored snapshot %s (%d rows); guard enforcement disabled.\n",
			snap.SnapshotID, snap.TotalRows())
		return nil
	},
}

var reinstateCmd = &cobra.Command{
	Use:   "reinstate",
	Short: "Re-enable guard enforcement after a soft rollback",
	RunE: func(cmd *cobra.Command, args []string) error {
		changed, err := maint.Reinstate(cmd.Context())
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("Guard enforcement enabled.")
		} else {
			fmt.Println("Guard enforcement was already enabled.")
		}
		return nil
	},
}

var enforcementCmd = &cobra.Command{
	Use:   "enforcement",
	Short: "Show whether guard enforcement is on",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := maint.Enforcement(cmd.Context())
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("enabled")
		} else {
			fmt.Println("disabled")
		}
		return nil
	},
}

func init() {
	rollbackHardCmd.Flags().StringVar(&hardSnapshotID, "snapshot", "", "snapshot id to restore (required)")
	rollbackHardCmd.Flags().BoolVar(&hardConfirmed, "yes", false, "confirm destructive restore")
	_ = rollbackHardCmd.MarkFlagRequired("snapshot")

	rollbackCmd.AddCommand(rollbackSoftCmd)
	rollbackCmd.AddCommand(rollbackHardCmd)
}
