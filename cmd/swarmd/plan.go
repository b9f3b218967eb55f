package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/swarmd/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with structured plan documents",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan.md>",
	Short: "Validate a plan without executing it",
	Long: `Parse a structured plan, run the full validation chain (structure,
fields, dependency resolution, cycle detection) and print the features in
dependency order.

Examples:
  swarmd plan validate plan.md`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanValidate,
}

func init() {
	planCmd.AddCommand(planValidateCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plan %s: %w", args[0], err)
	}

	doc, err := plan.Parse(string(content))
	if err != nil {
		var perr *plan.Error
		if errors.As(err, &perr) {
			return fmt.Errorf("invalid plan: %w", perr)
		}
		return err
	}

	order := plan.DependencyOrder(doc.Features)

	fmt.Printf("Plan: %s\n", doc.Title)
	fmt.Printf("Features (%d, in dependency order):\n", len(order))
	for i, f := range order {
		fmt.Printf("  %d. %s [%s, %s]\n", i+1, f.Name, f.Agent, f.Priority)
		for _, dep := range f.Dependencies {
			fmt.Printf("     depends on %s\n", dep)
		}
	}
	if len(doc.ArchitectureDecisions) > 0 {
		fmt.Printf("Architecture decisions: %d\n", len(doc.ArchitectureDecisions))
	}
	return nil
}
