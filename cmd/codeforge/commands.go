package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeforge/config"
	"codeforge/internal/analyze"
	"codeforge/internal/cache"
	"codeforge/internal/container"
	"codeforge/internal/crash"
	"codeforge/internal/types"
	"codeforge/internal/workflow"

	"github.com/spf13/cobra"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM, so a ^C
// stops in-flight container work through context cancellation.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Discover presets, build all fuzz targets and fuzz them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(engine *workflow.Engine) error {
				ctx, cancel := signalContext()
				defer cancel()

				report, err := engine.Run(ctx, func(label string, pct int) {
					fmt.Printf("[%3d%%] %s\n", pct, label)
				})
				if err != nil {
					return err
				}
				printReport(report)
				return nil
			})
		},
	}
}

func printReport(report *types.WorkflowReport) {
	fmt.Printf("\npresets:  %d/%d processed\n", report.PresetsProcessed, report.PresetsTotal)
	fmt.Printf("targets:  %d/%d built\n", report.TargetsBuilt, report.TargetsTotal)
	fmt.Printf("crashes:  %d found\n", report.CrashesFound)
	if len(report.Errors) == 0 {
		return
	}
	fmt.Printf("\n%d error(s):\n", len(report.Errors))
	for _, workflowErr := range report.Errors {
		fmt.Printf("  [%s] preset=%s targets=%v: %s\n",
			workflowErr.Stage, workflowErr.Preset, workflowErr.Targets, workflowErr.Message)
		for _, detail := range workflowErr.Details {
			if detail.Hint != "" {
				fmt.Printf("    hint (%s): %s\n", detail.Target, detail.Hint)
			}
		}
	}
}

func newFuzzersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuzzers",
		Short: "List discovered fuzzers with build status and crashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(service *cache.Service) error {
				ctx, cancel := signalContext()
				defer cancel()

				fuzzers, err := service.Fuzzers(ctx)
				if err != nil {
					return err
				}
				if len(fuzzers) == 0 {
					fmt.Println("no fuzzers discovered")
					return nil
				}
				for _, md := range fuzzers {
					fmt.Printf("%-30s %-12s preset=%-15s crashes=%d\n",
						md.Name, md.Status, md.Preset, len(md.Crashes))
				}
				return nil
			})
		},
	}
}

func newDebugCmd() *cobra.Command {
	var commands []string
	cmd := &cobra.Command{
		Use:   "debug <fuzzer> <crash-file>",
		Short: "Open an interactive GDB session for a crash artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(analyzer *analyze.Analyzer) error {
				ctx, cancel := signalContext()
				defer cancel()

				result := analyzer.Analyze(ctx, args[0], args[1], analyze.DebuggerOptions{
					Quiet:    true,
					Commands: commands,
				})
				if !result.OK {
					return fmt.Errorf("%s", result.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&commands, "command", "x", nil, "GDB command to run before the session starts (repeatable)")
	return cmd
}

func newBacktraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backtrace <fuzzer> <crash-file>",
		Short: "Print a backtrace for a crash artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(analyzer *analyze.Analyzer) error {
				ctx, cancel := signalContext()
				defer cancel()

				backtrace, err := analyzer.Backtrace(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Println(backtrace)
				return nil
			})
		},
	}
}

func newStopAllCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every container the engine has started",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(registry *container.Registry) error {
				ctx, cancel := signalContext()
				defer cancel()

				registry.AdoptJournal(ctx)
				report := registry.TerminateAll(ctx, !keep)
				fmt.Printf("stopped %d/%d containers\n", report.Succeeded, report.Total)
				for _, stopErr := range report.Errors {
					fmt.Fprintf(os.Stderr, "  %v\n", stopErr)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "stop containers but do not remove them")
	return cmd
}

func newClearCrashesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-crashes <fuzzer>",
		Short: "Delete all recorded crash artifacts of a fuzzer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(manager *crash.Manager, cfg *config.AppConfig) error {
				removed, err := manager.Clear(cfg.FuzzingDir(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("removed %d crash artifact(s)\n", removed)
				return nil
			})
		},
	}
}
