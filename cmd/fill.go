// File: cmd/fill.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/authgate"
	"github.com/xkilldash9x/formpilot-cli/internal/browser"
	"github.com/xkilldash9x/formpilot-cli/internal/config"
	"github.com/xkilldash9x/formpilot-cli/internal/filler"
	"github.com/xkilldash9x/formpilot-cli/internal/genclient"
	"github.com/xkilldash9x/formpilot-cli/internal/llmclient"
	"github.com/xkilldash9x/formpilot-cli/internal/observability"
	"github.com/xkilldash9x/formpilot-cli/internal/orchestrator"
	"github.com/xkilldash9x/formpilot-cli/internal/resolver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newFillCmd creates and configures the `fill` command.
func newFillCmd() *cobra.Command {
	fillCmd := &cobra.Command{
		Use:   "fill [targets...]",
		Short: "Resolves values for the forms at the target URLs and fills them in a browser",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so CLI flags override the
			// config file and environment with the right precedence.
			if err := viper.BindPFlag("filler.submit", cmd.Flags().Lookup("submit")); err != nil {
				return err
			}
			if err := viper.BindPFlag("resolver.invalid_scenario", cmd.Flags().Lookup("invalid-scenario")); err != nil {
				return err
			}
			if err := viper.BindPFlag("resolver.custom_values_file", cmd.Flags().Lookup("values")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-read the config now that flags are bound.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}
			cfg.SetFillConfig(config.FillConfig{
				Targets:    normalizeTargets(args),
				SchemaFile: viper.GetString("schema"),
				Output:     viper.GetString("output"),
				Format:     viper.GetString("format"),
			})

			if s := cfg.Resolver().InvalidScenario; s != "" && !isKnownScenario(s) {
				return fmt.Errorf("unknown invalid-data scenario %q (valid: %s)",
					s, strings.Join(resolver.Scenarios(), ", "))
			}

			explicit, err := loadCustomValues(cfg.Resolver().CustomValuesFile)
			if err != nil {
				return err
			}

			logger.Info("Starting fill run",
				zap.Strings("targets", cfg.Fill().Targets),
				zap.String("schema", cfg.Fill().SchemaFile),
				zap.Bool("submit", cfg.Filler().Submit),
				zap.String("invalid_scenario", cfg.Resolver().InvalidScenario),
			)

			driver, err := browser.NewDriver(ctx, cfg.Browser(), cfg.Network(), logger)
			if err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			defer driver.Close(context.Background())

			res, gen := buildResolver(cfg, logger)

			params := orchestrator.Params{
				Driver:   driver,
				Scanner:  &orchestrator.FileScanner{Path: cfg.Fill().SchemaFile},
				Analyzer: analyzerFromFlags(cmd),
				Resolver: res,
				Executor: filler.New(driver, logger,
					filler.WithFieldTimeout(cfg.Filler().FieldTimeout),
					filler.WithSubmitWait(cfg.Filler().SubmitWait)),
				Logger:          logger,
				Submit:          cfg.Filler().Submit,
				InvalidScenario: cfg.Resolver().InvalidScenario,
			}
			params.AppReadySelector, _ = cmd.Flags().GetString("app-selector")

			if useAuth, _ := cmd.Flags().GetBool("auth"); useAuth {
				// The same --username/--password that feed the credential
				// tier also drive the gate's login-form submission.
				username, _ := cmd.Flags().GetString("username")
				password, _ := cmd.Flags().GetString("password")
				if username != "" || password != "" {
					cfg.SetAuthCredentials(username, password)
				}
				cache, err := authgate.NewSessionCache(cfg.Auth().CacheDir, nil)
				if err != nil {
					return fmt.Errorf("failed to open session cache: %w", err)
				}
				params.Gate = authgate.New(cache, cfg.Auth(), logger)
			}

			orch, err := orchestrator.New(params)
			if err != nil {
				return err
			}

			var results []*orchestrator.RunResult
			fieldErrors := 0
			for _, target := range cfg.Fill().Targets {
				result, err := orch.Run(ctx, target, explicit)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						logger.Warn("Fill run aborted", zap.String("target", target))
						return fmt.Errorf("fill aborted by user signal")
					}
					logger.Error("Fill run failed", zap.String("target", target), zap.Error(err))
					return err
				}
				for _, f := range result.Forms {
					fieldErrors += len(f.Report.Errors)
				}
				results = append(results, result)
			}

			if gen != nil {
				m := gen.Metrics()
				logger.Info("Generation usage",
					zap.Int64("total_calls", m.TotalCalls),
					zap.Int64("batch_calls", m.BatchCalls),
					zap.Int64("failed_calls", m.FailedCalls),
					zap.Int64("saved_calls", m.SavedCalls),
				)
			}

			if out := cfg.Fill().Output; out != "" {
				if err := writeRunReport(out, results); err != nil {
					return err
				}
				logger.Info("Report written", zap.String("path", out))
			}

			for _, r := range results {
				printRunSummary(r)
			}
			if fieldErrors > 0 {
				return fmt.Errorf("fill completed with %d field error(s)", fieldErrors)
			}
			return nil
		},
	}

	fillCmd.Flags().StringP("schema", "s", "", "Path to the form schema JSON file. (Required)")
	fillCmd.Flags().String("values", "", "Path to a JSON file of explicit field values (id or name -> value).")
	fillCmd.Flags().StringP("output", "o", "", "Output file path for the run report. If unset, no report is written.")
	fillCmd.Flags().StringP("format", "f", "json", "Format for the run report (currently 'json').")
	fillCmd.Flags().Bool("submit", false, "Submit each form after a clean fill pass.")
	fillCmd.Flags().String("invalid-scenario", "", "Resolve one class of deliberately invalid data (see 'validate --list-scenarios').")
	fillCmd.Flags().Bool("auth", false, "Run the authentication gate before filling (cached session or manual login).")
	fillCmd.Flags().String("app-selector", "", "Wait for this selector before scanning; for app pages that render forms late.")
	fillCmd.Flags().String("username", "", "Credential for username-like fields and, with --auth, the login form.")
	fillCmd.Flags().String("password", "", "Credential for password fields and, with --auth, the login form.")
	fillCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	_ = fillCmd.MarkFlagRequired("schema")

	return fillCmd
}

// analyzerFromFlags turns --username/--password into a page context so the
// credential tier of the resolver can pick them up.
func analyzerFromFlags(cmd *cobra.Command) schemas.PageAnalyzer {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" && password == "" {
		return nil
	}
	pageCtx := &schemas.PageContext{HasCredentials: true}
	if username != "" {
		pageCtx.Credentials = append(pageCtx.Credentials,
			schemas.CredentialHint{Role: "username", Value: username, Source: "flag"})
	}
	if password != "" {
		pageCtx.Credentials = append(pageCtx.Credentials,
			schemas.CredentialHint{Role: "password", Value: password, Source: "flag"})
	}
	return &orchestrator.StaticContext{Context: pageCtx}
}

// buildResolver wires the generative tiers when an API key is present and
// degrades to fully deterministic resolution when it is not.
func buildResolver(cfg config.Interface, logger *zap.Logger) (*resolver.Resolver, *genclient.Client) {
	var opts []resolver.Option
	if p := cfg.Resolver().AttachmentPath; p != "" {
		opts = append(opts, resolver.WithAttachmentPath(p))
	}

	if cfg.LLM().APIKey == "" {
		logger.Warn("No LLM API key configured; generative tiers disabled, using rule-based values only")
		return resolver.New(nil, logger, opts...), nil
	}

	completer, err := llmclient.NewGeminiClient(cfg.LLM(), logger)
	if err != nil {
		logger.Warn("Failed to initialize generation backend; using rule-based values only", zap.Error(err))
		return resolver.New(nil, logger, opts...), nil
	}
	gen := genclient.New(completer, logger)
	return resolver.New(gen, logger, opts...), gen
}

// loadCustomValues reads an explicit values file (a flat JSON object).
func loadCustomValues(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading values file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing values file %s: %w", path, err)
	}
	return values, nil
}

func isKnownScenario(s string) bool {
	for _, known := range resolver.Scenarios() {
		if s == known {
			return true
		}
	}
	return false
}

func normalizeTargets(args []string) []string {
	targets := make([]string, len(args))
	for i, t := range args {
		if !strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
			t = "https://" + t
		}
		targets[i] = t
	}
	return targets
}

func writeRunReport(path string, results []*orchestrator.RunResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

func printRunSummary(r *orchestrator.RunResult) {
	fmt.Printf("\n%s (run %s)\n", r.URL, r.RunID)
	if len(r.Forms) == 0 {
		fmt.Println("  no forms detected")
		return
	}
	for _, f := range r.Forms {
		status := "ok"
		if !f.Report.Succeeded() {
			status = fmt.Sprintf("%d error(s)", len(f.Report.Errors))
		}
		fmt.Printf("  form %d: %d/%d fields filled, %d skipped, %s",
			f.FormIndex, f.Report.FilledCount, f.Report.TotalFields, f.Report.SkippedCount, status)
		if f.Submitted {
			fmt.Print(", submitted")
		}
		fmt.Println()
		for _, fe := range f.Report.Errors {
			fmt.Printf("    %s (%s): %s\n", fe.FieldID, fe.Selector, fe.Reason)
		}
	}
}
