package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/swarmd/internal/coverage"
)

var coverageJSON bool

var coverageCmd = &cobra.Command{
	Use:   "coverage <contract-id>",
	Short: "Report knowledge-graph coverage for a contract",
	Long: `Show which code modules implement a contract, which tests validate
it, which tasks define it, and per-endpoint coverage for OpenAPI contracts.

Examples:
  swarmd coverage 3f6c...
  swarmd coverage --json 3f6c...`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverage,
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "emit the report as JSON")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	cov, err := coverage.NewAnalyzer(s, logger).GetContractCoverage(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("contract coverage: %w", err)
	}

	if coverageJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cov)
	}

	fmt.Printf("Contract: %s (%s)\n", cov.Contract.Name, cov.Contract.Type)
	fmt.Printf("Implementing modules: %d\n", len(cov.ImplementingModules))
	for _, m := range cov.ImplementingModules {
		fmt.Printf("  - %s (%s)\n", m.Name, m.FilePath)
	}
	fmt.Printf("Validating tests: %d\n", len(cov.ValidatingTests))
	for _, tc := range cov.ValidatingTests {
		fmt.Printf("  - %s\n", tc.Name)
	}
	fmt.Printf("Defined by tasks: %d\n", len(cov.DefinedTasks))
	for _, t := range cov.DefinedTasks {
		fmt.Printf("  - %s [%s]\n", t.Title, t.Status)
	}
	if len(cov.EndpointCoverage) > 0 {
		fmt.Println("Endpoints:")
		for _, e := range cov.EndpointCoverage {
			mark := " "
			if e.Covered() {
				mark = "x"
			}
			fmt.Printf("  [%s] %s %s (impl %d, tests %d)\n",
				mark, e.Method, e.Path, len(e.Implementations), len(e.Tests))
		}
	}
	return nil
}
