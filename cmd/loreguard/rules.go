package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loreguard-ai/loreguard/internal/database"
	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/types"
)

var (
	ruleTenant          string
	ruleName            string
	ruleConditionType   string
	ruleConditionConfig string
	ruleActionType      string
	ruleActionConfig    string
	ruleCooldown        int
	ruleDryRun          bool
	ruleDisabled        bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage guardrail rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's guardrail rules",
	RunE:  runRulesList,
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a guardrail rule",
	Long: `Create a guardrail rule. Condition and action configs are JSON:

  loreguard rules create --tenant acme --name "high error rate" \
    --condition error_rate_threshold --condition-config '{"threshold":50}' \
    --action pause_agent --cooldown 30`,
	RunE: runRulesCreate,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a guardrail rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a guardrail rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(cmd, args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a guardrail rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(cmd, args[0], false)
	},
}

func init() {
	rulesListCmd.Flags().StringVar(&ruleTenant, "tenant", "", "Tenant ID (required)")
	_ = rulesListCmd.MarkFlagRequired("tenant")

	rulesCreateCmd.Flags().StringVar(&ruleTenant, "tenant", "", "Tenant ID (required)")
	rulesCreateCmd.Flags().StringVar(&ruleName, "name", "", "Rule name (required)")
	rulesCreateCmd.Flags().StringVar(&ruleConditionType, "condition", "", "Condition type (required)")
	rulesCreateCmd.Flags().StringVar(&ruleConditionConfig, "condition-config", "{}", "Condition config as JSON")
	rulesCreateCmd.Flags().StringVar(&ruleActionType, "action", "notify", "Action type")
	rulesCreateCmd.Flags().StringVar(&ruleActionConfig, "action-config", "{}", "Action config as JSON")
	rulesCreateCmd.Flags().IntVar(&ruleCooldown, "cooldown", 0, "Cooldown in minutes between triggers")
	rulesCreateCmd.Flags().BoolVar(&ruleDryRun, "dry-run", false, "Record triggers without executing the action")
	rulesCreateCmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "Create the rule disabled")
	_ = rulesCreateCmd.MarkFlagRequired("tenant")
	_ = rulesCreateCmd.MarkFlagRequired("name")
	_ = rulesCreateCmd.MarkFlagRequired("condition")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
}

func openDB() (*database.DB, error) {
	dbCfg := database.DefaultConfig(cfg.Database.Path)
	db, err := database.OpenWithConfig(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rules, err := database.NewRuleDAO(db).ListRules(cmd.Context(), ruleTenant)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rules")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONDITION\tACTION\tENABLED\tDRY-RUN\tCOOLDOWN")
	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%dm\n",
			r.ID, r.Name, r.ConditionType, r.ActionType, r.Enabled, r.DryRun, r.CooldownMinutes)
	}
	return w.Flush()
}

func runRulesCreate(cmd *cobra.Command, args []string) error {
	conditionType := guardrail.ConditionType(ruleConditionType)
	if !conditionType.IsValid() {
		return fmt.Errorf("unknown condition type %q", ruleConditionType)
	}
	actionType := guardrail.ActionType(ruleActionType)
	if !actionType.IsValid() {
		return fmt.Errorf("unknown action type %q", ruleActionType)
	}

	var conditionConfig, actionConfig map[string]any
	if err := json.Unmarshal([]byte(ruleConditionConfig), &conditionConfig); err != nil {
		return fmt.Errorf("invalid condition config: %w", err)
	}
	if err := json.Unmarshal([]byte(ruleActionConfig), &actionConfig); err != nil {
		return fmt.Errorf("invalid action config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rule := &guardrail.Rule{
		TenantID:        ruleTenant,
		Name:            ruleName,
		Enabled:         !ruleDisabled,
		ConditionType:   conditionType,
		ConditionConfig: conditionConfig,
		ActionType:      actionType,
		ActionConfig:    actionConfig,
		CooldownMinutes: ruleCooldown,
		DryRun:          ruleDryRun,
	}
	if err := database.NewRuleDAO(db).CreateRule(cmd.Context(), rule); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Created rule %s\n", rule.ID)
	return nil
}

// setRuleEnabled flips the enabled flag. Compiled scanners stay keyed by
// rule ID, so no registry invalidation is needed for an enable/disable.
func setRuleEnabled(cmd *cobra.Command, rawID string, enabled bool) error {
	id, err := types.ParseID(rawID)
	if err != nil {
		return fmt.Errorf("invalid rule ID: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	dao := database.NewRuleDAO(db)
	rule, err := dao.GetRule(cmd.Context(), id)
	if err != nil {
		return err
	}
	rule.Enabled = enabled
	if err := dao.UpdateRule(cmd.Context(), rule); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rule %s %s\n", id, state)
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid rule ID: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewRuleDAO(db).DeleteRule(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", id)
	return nil
}
