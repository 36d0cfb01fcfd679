// File: cmd/validate.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/config"
	"github.com/xkilldash9x/formpilot-cli/internal/observability"
	"github.com/xkilldash9x/formpilot-cli/internal/orchestrator"
	"github.com/xkilldash9x/formpilot-cli/internal/resolver"
)

// resolvedForm is one form's dry-run output.
type resolvedForm struct {
	FormIndex int                      `json:"form_index"`
	Values    schemas.ResolvedValueMap `json:"values"`
}

// newValidateCmd creates the `validate` command: a dry run that resolves
// values for a schema without touching a browser.
func newValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Resolves values for a form schema offline and prints them",
		Long: "Runs the value resolution pipeline against a schema file without launching a " +
			"browser. Useful for inspecting what a fill run would type, and for previewing " +
			"invalid-data scenarios before pointing them at a live form.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("resolver.invalid_scenario", cmd.Flags().Lookup("scenario")); err != nil {
				return err
			}
			if err := viper.BindPFlag("resolver.custom_values_file", cmd.Flags().Lookup("values")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if list, _ := cmd.Flags().GetBool("list-scenarios"); list {
				for _, s := range resolver.Scenarios() {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}

			schemaFile := viper.GetString("schema")
			if schemaFile == "" {
				return fmt.Errorf("--schema is required (or use --list-scenarios)")
			}
			scenario := cfg.Resolver().InvalidScenario
			if scenario != "" && !isKnownScenario(scenario) {
				return fmt.Errorf("unknown invalid-data scenario %q (valid: %s)",
					scenario, strings.Join(resolver.Scenarios(), ", "))
			}

			explicit, err := loadCustomValues(cfg.Resolver().CustomValuesFile)
			if err != nil {
				return err
			}

			scanner := &orchestrator.FileScanner{Path: schemaFile}
			forms, err := scanner.ScanForms(ctx, nil)
			if err != nil {
				return err
			}

			res, _ := buildResolver(cfg, logger)

			resolveAll := func(scenario string) ([]resolvedForm, error) {
				resolved := make([]resolvedForm, 0, len(forms))
				for i, form := range forms {
					var values schemas.ResolvedValueMap
					var err error
					if scenario != "" {
						values, err = res.ResolveInvalid(ctx, form, scenario, explicit, nil)
					} else {
						values, err = res.Resolve(ctx, form, explicit, nil)
					}
					if err != nil {
						return nil, fmt.Errorf("resolving form %d: %w", i, err)
					}
					resolved = append(resolved, resolvedForm{FormIndex: i, Values: values})
				}
				return resolved, nil
			}

			var payload interface{}
			if all, _ := cmd.Flags().GetBool("all-scenarios"); all {
				byScenario := make(map[string][]resolvedForm, len(resolver.Scenarios()))
				for _, s := range resolver.Scenarios() {
					resolved, err := resolveAll(s)
					if err != nil {
						return err
					}
					byScenario[s] = resolved
				}
				payload = byScenario
			} else {
				resolved, err := resolveAll(scenario)
				if err != nil {
					return err
				}
				payload = resolved
			}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding resolved values: %w", err)
			}

			if out := viper.GetString("output"); out != "" {
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("writing resolved values: %w", err)
				}
				logger.Info("Resolved values written", zap.String("path", out))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	validateCmd.Flags().StringP("schema", "s", "", "Path to the form schema JSON file.")
	validateCmd.Flags().String("scenario", "", "Invalid-data scenario to apply.")
	validateCmd.Flags().String("values", "", "Path to a JSON file of explicit field values.")
	validateCmd.Flags().StringP("output", "o", "", "Write resolved values to a file instead of stdout.")
	validateCmd.Flags().Bool("list-scenarios", false, "List the supported invalid-data scenarios and exit.")
	validateCmd.Flags().Bool("all-scenarios", false, "Resolve the schema once per invalid-data scenario.")

	return validateCmd
}
