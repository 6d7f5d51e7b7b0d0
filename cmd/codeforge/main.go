package main

import (
	"context"
	"fmt"
	"os"

	"codeforge/config"
	"codeforge/internal/analyze"
	"codeforge/internal/builder"
	"codeforge/internal/cache"
	"codeforge/internal/container"
	"codeforge/internal/corpus"
	"codeforge/internal/crash"
	"codeforge/internal/fuzz"
	"codeforge/internal/workflow"
	"codeforge/pkg/database"
	"codeforge/pkg/logger"
	"codeforge/pkg/sink"
	"codeforge/pkg/watchdog"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func baseModule() fx.Option {
	return fx.Options(
		fx.Provide(
			config.LoadConfig,            // inject config
			logger.NewLogger,             // inject logger
			container.NewDockerRuntime,   // inject docker runtime adapter
			container.NewRedisClient,     // inject redis client (optional journal backend)
			container.NewJournal,         // inject container journal
			container.NewRegistry,        // inject container registry
			database.NewDBConnection,     // inject crash sink db (optional)
			crash.NewManager,             // inject crash manager
			corpus.NewSeeder,             // inject corpus seeder
			watchdog.NewWatchDogFactory,  // inject watchdog factory
			builder.NewOrchestrator,      // inject build orchestrator
			fuzz.NewRunner,               // inject fuzz runner
			cache.NewService,             // inject fuzzer metadata cache
			analyze.NewAnalyzer,          // inject crash analyzer
			workflow.NewEngine,           // inject workflow engine
			func(lg *zap.Logger) sink.Sink { return sink.NewLogSink(lg) },
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zapcore.DebugLevel)
			return &zlogger
		}),
	)
}

// withApp runs a one-shot command inside a started fx app, so every command
// gets the same wiring and lifecycle the long-running paths use.
func withApp(invoke any) error {
	app := fx.New(
		baseModule(),
		fx.Invoke(invoke),
	)
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	stopCtx, cancelStop := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancelStop()
	return app.Stop(stopCtx)
}

func main() {
	root := &cobra.Command{
		Use:   "codeforge",
		Short: "Build, fuzz and debug fuzz targets inside containers",
	}

	root.AddCommand(
		newRunCmd(),
		newFuzzersCmd(),
		newDebugCmd(),
		newBacktraceCmd(),
		newStopAllCmd(),
		newClearCrashesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
