package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loreguard-ai/loreguard/internal/database"
	"github.com/loreguard-ai/loreguard/internal/redact"
	"github.com/loreguard-ai/loreguard/internal/types"
)

var reviewTenant string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the human review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review entries for a tenant",
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <entry-id>",
	Short: "Approve a pending review entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReview(cmd, args[0], redact.ReviewStatusApproved)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <entry-id>",
	Short: "Reject a pending review entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReview(cmd, args[0], redact.ReviewStatusRejected)
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewTenant, "tenant", "", "Tenant ID (required)")
	_ = reviewListCmd.MarkFlagRequired("tenant")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := database.NewReviewDAO(db).ListPending(cmd.Context(), reviewTenant, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending entries")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tEXPIRES\tFINDINGS\tPREVIEW")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.ExpiresAt.Format("2006-01-02 15:04"),
			len(e.RedactionFindings),
			truncate(e.RedactedContent, 40))
	}
	return w.Flush()
}

func resolveReview(cmd *cobra.Command, rawID string, status redact.ReviewStatus) error {
	id, err := types.ParseID(rawID)
	if err != nil {
		return fmt.Errorf("invalid entry ID: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewReviewDAO(db).Resolve(cmd.Context(), id, status); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Entry %s %s\n", id, status)
	return nil
}
