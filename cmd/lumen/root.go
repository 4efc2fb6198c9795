package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lumenqi/lumen-core/pkg/core"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "lumen",
		Short:         "Lumen companion core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "JSON configuration file")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", ".env file to load instead of searching for one")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(newChatCmd(flags), newStatsCmd(flags), newEvolveCmd(flags))
	return cmd
}

// loadConfig picks the configuration source from the flags.
func (f *rootFlags) loadConfig() (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case f.configPath != "":
		cfg, err = core.LoadConfigFromJSON(f.configPath)
	case f.envFile != "":
		cfg, err = core.LoadConfigFromEnvFile(f.envFile)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, nil
}

func (f *rootFlags) openCompanion(opts ...core.Option) (*core.Companion, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	return core.New(cfg, opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
