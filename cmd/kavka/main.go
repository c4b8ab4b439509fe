package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kavka/kavka/internal/api"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/pkg/logger"
)

var (
	version = "1.0.0"

	configPath string
	cfg        *config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "kavka",
		Short:         "Inspect and administer Kafka clusters",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $KAVKA_CONFIG or ~/.kavka/config.yml)")

	root.AddCommand(
		serveCommand(),
		snapshotCommand(),
		topicsCommand(),
		infoCommand(),
		groupsCommand(),
		createTopicCommand(),
		removeTopicsCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置并初始化日志，一次性命令的日志写到stderr
func bootstrap(oneShot bool) (*api.Service, error) {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Log
	if oneShot {
		switch logCfg.Output {
		case "", "stdout":
			logCfg.Output = "stderr"
		case "both":
			logCfg.Output = "file"
		}
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return api.NewService(cfg), nil
}
