package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	hostconfig "github.com/gopluginhost/pluginhost/config"
	"github.com/gopluginhost/pluginhost/descriptor"
	"github.com/gopluginhost/pluginhost/loader"
	"github.com/gopluginhost/pluginhost/logging"
	"github.com/gopluginhost/pluginhost/metrics"
	"github.com/gopluginhost/pluginhost/runtime"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	configName string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "pluginctl",
		Short: "Exercise the native plug-in host from the command line",
		Long:  "pluginctl drives scan/install/start/stop/list against a plug-in host Context, for manual testing and scripted demos.",
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config-path", "config", "directory containing the bootstrap config file")
	root.PersistentFlags().StringVar(&flags.configName, "config-name", "config", "bootstrap config file base name")

	root.AddCommand(
		newScanCommand(flags),
		newInstallCommand(flags),
		newStartCommand(flags),
		newStopCommand(flags),
		newListCommand(flags),
		newDescribeCommand(flags),
		newServeCommand(flags),
	)
	return root
}

// buildContext loads bootstrap config and wires a tracked Context with
// the production SymbolLoader, DescriptorParser and a metrics Collector
// registered against the global Prometheus registry, so every
// subcommand's resolve/start/stop calls report durations regardless of
// whether this invocation also serves /metrics.
func buildContext(flags *globalFlags) (*runtime.Context, *hostconfig.Bootstrap, *metrics.Collector, error) {
	cfg, err := hostconfig.NewConfig(hostconfig.ConfigOptions{
		BasePath:  flags.configPath,
		FileName:  flags.configName,
		FileType:  "yaml",
		EnvPrefix: "PLUGINHOST",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	boot, err := hostconfig.LoadBootstrap(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load bootstrap: %w", err)
	}
	if err := boot.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = boot.LogLevel
	logCfg.LogInTerminal = true
	logger := logging.NewLogger(logCfg).Named("pluginctl")
	loggerFactory := logging.NewFactory(logCfg)

	collector := metrics.DefaultCollector()
	// Any error-or-above entry the ambient logger emits (framework-level
	// log calls with no plugin identifier) also counts as a failure in
	// Prometheus, so an operator watching /metrics sees these without
	// having to scrape the log file too.
	logger = logging.WithHook(logger, func(entry zapcore.Entry) error {
		if entry.Level >= zapcore.ErrorLevel {
			collector.RecordFailure("*", "log")
		}
		return nil
	})
	ctx := runtime.NewTrackedContext(
		runtime.WithLogger(logger),
		runtime.WithLoggerFactory(loggerFactory),
		runtime.WithSymbolLoader(loader.New()),
		runtime.WithDescriptorParser(descriptor.New()),
		runtime.WithScanConcurrency(boot.ScanConcurrency),
		runtime.WithMetrics(collector),
	)
	for _, dir := range boot.Directories {
		ctx.AddDirectory(dir)
	}
	return ctx, boot, collector, nil
}
