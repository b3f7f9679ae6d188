// Package rule is the admin CLI for the rule engine, grounded on the
// teacher's adapter/cli/automation command group.
package rule

import (
	"github.com/hearthctl/ruleengine/internal/ruleengine/application"
	"github.com/spf13/cobra"
)

// Cmd is the rule command group.
var Cmd = &cobra.Command{
	Use:     "rule",
	Aliases: []string{"rules"},
	Short:   "Manage rule engine rules",
	Long: `List, enable/disable, remove, and trigger rule engine rules.

Examples:
  ruleengine rule list               # List all rules
  ruleengine rule enable <id>        # Enable a rule
  ruleengine rule disable <id>       # Disable a rule
  ruleengine rule remove <id>        # Remove a rule
  ruleengine rule trigger <id>       # Execute a rule's actions unconditionally
  ruleengine rule trigger <id> --exit  # Execute a rule's exit actions`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(triggerCmd)
}

// engine is the global rule engine instance used by every subcommand.
var engine *application.Engine

// SetEngine sets the global rule engine instance.
func SetEngine(e *application.Engine) {
	engine = e
}

// GetEngine returns the global rule engine instance.
func GetEngine() *application.Engine {
	return engine
}
