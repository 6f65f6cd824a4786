package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loreguard-ai/loreguard/internal/redact"
	"github.com/loreguard-ai/loreguard/internal/scanner"
)

var (
	redactTenant   string
	redactCategory string
	redactDeny     []string
	redactTerms    []string
)

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Run the redaction pipeline over text",
	Long: `Run the full layered redaction pipeline (secrets, PII, internal
URLs and paths, tenant de-identification, deny list) over text given as
an argument or on stdin, and print the redacted output with findings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRedact,
}

func init() {
	redactCmd.Flags().StringVar(&redactTenant, "tenant", "", "Tenant that owns the content (required)")
	redactCmd.Flags().StringVar(&redactCategory, "category", "", "Content category recorded on findings")
	redactCmd.Flags().StringSliceVar(&redactDeny, "deny", nil, "Deny list rule (substring or /regex/flags)")
	redactCmd.Flags().StringSliceVar(&redactTerms, "term", nil, "Known tenant term to strip")
	_ = redactCmd.MarkFlagRequired("tenant")
}

func runRedact(cmd *cobra.Command, args []string) error {
	text, err := inputText(args)
	if err != nil {
		return err
	}

	pipeline, err := redact.NewPipeline(redact.Config{
		Secrets: scanner.Config{
			MinConfidence:    cfg.Pipeline.SecretsMinConfidence,
			EntropyEnabled:   true,
			EntropyThreshold: cfg.Pipeline.EntropyThreshold,
		},
		PII: scanner.Config{
			MinConfidence: cfg.Pipeline.PIIMinConfidence,
		},
		AllowedDomains: cfg.Pipeline.AllowedDomains,
	})
	if err != nil {
		return err
	}

	result := pipeline.Process(cmd.Context(), text, redact.Context{
		TenantID:         redactTenant,
		Category:         redactCategory,
		DenyListPatterns: redactDeny,
		KnownTenantTerms: redactTerms,
	})

	out := cmd.OutOrStdout()
	if result.Blocked {
		color.New(color.FgRed, color.Bold).Fprintf(out, "BLOCKED by %s: %s\n", result.BlockedBy, result.BlockReason)
		return nil
	}

	fmt.Fprintln(out, result.Output)
	if len(result.Findings) > 0 {
		fmt.Fprintln(out)
		for _, f := range result.Findings {
			color.New(color.FgYellow).Fprintf(out, "%-18s", f.Layer)
			fmt.Fprintf(out, " %s -> %s  [%d:%d]\n",
				f.Category, f.Replacement, f.StartOffset, f.EndOffset)
		}
	}
	return nil
}
