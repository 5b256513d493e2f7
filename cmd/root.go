// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/internal/config"
	"github.com/xkilldash9x/suture-cli/internal/observability"
)

var cfgFile string

// NewRootCommand builds a fresh root command tree. Each invocation gets its
// own command instances so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "suture",
		Short:   "Suture proposes code fixes and verifies them with generated browser tests.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "suture"})
				return fmt.Errorf("loading configuration: %w", err)
			}
			config.Set(cfg)
			observability.InitializeLogger(cfg.Logger)

			observability.GetLogger().Debug("Starting suture.", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./suture.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newFixCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command against ctx and logs terminal failures.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeConfig layers defaults, the config file, and SUTURE_* environment
// variables into the global viper instance.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.suture")
		}
		v.SetConfigName("suture")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SUTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}
