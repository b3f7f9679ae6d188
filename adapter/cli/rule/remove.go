package rule

import (
	"fmt"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove [rule-id]",
	Short:   "Remove a rule",
	Aliases: []string{"rm", "delete"},
	Args:    cobra.ExactArgs(1),
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
		if err := e.RemoveRule(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to remove rule: %w", err)
		}
		fmt.Printf("Removed rule %s\n", id)
		return nil
	},
}
