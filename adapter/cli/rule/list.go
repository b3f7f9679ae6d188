package rule

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List rule engine rules",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e := GetEngine()
		if e == nil {
			fmt.Println("Rule engine is not running.")
			return nil
		}

		rules := e.Rules()
		if len(rules) == 0 {
			fmt.Println("No rules found.")
			return nil
		}

		fmt.Printf("Rules (%d total)\n", len(rules))
		fmt.Println(strings.Repeat("-", 70))
		for _, r := range rules {
			statusIcon := "✓"
			if !r.Enabled {
				statusIcon = "○"
			}
			activeMark := ""
			if r.Active() {
				activeMark = "  [active]"
			}
			fmt.Printf("%s %-36s  %s%s\n", statusIcon, r.Id.String(), r.Name, activeMark)
		}
		fmt.Println(strings.Repeat("-", 70))
		return nil
	},
}
