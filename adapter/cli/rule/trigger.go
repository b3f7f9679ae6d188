package rule

import (
	"fmt"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/spf13/cobra"
)

var triggerExit bool

var triggerCmd = &cobra.Command{
	Use:   "trigger [rule-id]",
	Short: "Execute a rule's actions unconditionally",
	Long: `Execute a rule's actions (or, with --exit, its exit actions)
unconditionally, bypassing its state evaluator and time descriptor.
Rules whose actions bind event parameters cannot be triggered this way
(§4.7 "ContainsEventBasedAction").`,
	Args: cobra.ExactArgs(1),
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

		if triggerExit {
			if err := e.ExecuteExitActions(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to execute exit actions: %w", err)
			}
			fmt.Printf("Executed exit actions for rule %s\n", id)
			return nil
		}

		if err := e.ExecuteActions(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to execute actions: %w", err)
		}
		fmt.Printf("Executed actions for rule %s\n", id)
		return nil
	},
}

func init() {
	triggerCmd.Flags().BoolVar(&triggerExit, "exit", false, "execute the rule's exit actions instead")
}
