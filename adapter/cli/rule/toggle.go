package rule

import (
	"fmt"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable [rule-id]",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := GetEngine()
		if e == nil {
			fmt.Println("Rule engine is not running.")
			return nil
		}
		id, err := domain.ParseRuleId(args[0])
		if err != nil {
			return fmt.Errorf("invalid rule id: %w", err)
		}
		if err := e.EnableRule(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to enable rule: %w", err)
		}
		fmt.Printf("Enabled rule %s\n", id)
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable [rule-id]",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := GetEngine()
		if e == nil {
			fmt.Println("Rule engine is not running.")
			return nil
		}
		id, err := domain.ParseRuleId(args[0])
		if err != nil {
			return fmt.Errorf("invalid rule id: %w", err)
		}
		if err := e.DisableRule(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to disable rule: %w", err)
		}
		fmt.Printf("Disabled rule %s\n", id)
		return nil
	},
}
