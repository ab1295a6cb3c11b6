package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/guildops-backend/internal/app"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

const (
	keyConfig   = "config"
	keyLogMode  = "log_mode"
	keyHTTPAddr = "http_addr"
	keyLogLevel = "log_level"
	keyLogKeep  = "log_keep_secrets"
	keyLogSalt  = "log_hash_salt"
)

// cli carries the viper instance shared by every subcommand.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "guildops",
		Short:         "Guild quest blueprint and assignment progress service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file (env GUILDOPS_CONFIG)")
	cmd.PersistentFlags().String("log-mode", "", "Logger mode: development|production|test (env LOG_MODE)")
	_ = c.v.BindPFlag(keyConfig, cmd.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag(keyLogMode, cmd.PersistentFlags().Lookup("log-mode"))
	_ = c.v.BindEnv(keyConfig, "GUILDOPS_CONFIG")
	_ = c.v.BindEnv(keyLogMode, "LOG_MODE")
	_ = c.v.BindEnv(keyHTTPAddr, "HTTP_ADDR")
	_ = c.v.BindEnv(keyLogLevel, "LOG_LEVEL")
	_ = c.v.BindEnv(keyLogKeep, "LOG_KEEP_SECRETS")
	_ = c.v.BindEnv(keyLogSalt, "LOG_HASH_SALT")
	c.v.SetDefault(keyLogMode, "development")

	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newImportBlueprintCmd(c))
	cmd.AddCommand(newTokenCmd(c))

	return cmd
}

// load builds the logger and the layered app config.
func (c *cli) load() (*logger.Logger, app.Config, error) {
	log, err := logger.New(logger.Options{
		Mode:        c.v.GetString(keyLogMode),
		Level:       c.v.GetString(keyLogLevel),
		KeepSecrets: c.v.GetBool(keyLogKeep),
		HashSalt:    c.v.GetString(keyLogSalt),
	})
	if err != nil {
		return nil, app.Config{}, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.LoadConfig(log, c.v.GetString(keyConfig))
	if err != nil {
		log.Sync()
		return nil, app.Config{}, err
	}
	if addr := c.v.GetString(keyHTTPAddr); addr != "" {
		cfg.HTTPAddr = addr
	}
	return log, cfg, nil
}
