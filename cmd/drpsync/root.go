package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/drp-sh/drpsync/internal/client"
	"github.com/drp-sh/drpsync/internal/client/config"
	"github.com/drp-sh/drpsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:     "drpsync",
	Short:   "Sync a local folder to the drp store",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:         viper.ConfigFileUsed(),
			ServerURL:    viper.GetString("server_url"),
			Email:        viper.GetString("email"),
			Folder:       viper.GetString("folder"),
			RefreshToken: viper.GetString("refresh_token"),
			Excludes:     viper.GetStringSlice("excludes"),

			DebounceMs:     viper.GetInt("debounce_ms"),
			SweepIntervalS: viper.GetInt("sweep_interval_s"),
			Concurrency:    viper.GetInt("concurrency"),
		}
		if cfg.Path == "" {
			cfg.Path = config.DefaultConfigPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// config is good, errors past here are runtime errors
		cmd.SilenceUsage = true

		c, err := client.New(cfg)
		if err != nil {
			if errors.Is(err, client.ErrAlreadyRunning) {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
			}
			return err
		}

		defer slog.Info("Bye!")
		return c.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "drp server url")
	rootCmd.Flags().StringP("folder", "f", config.DefaultFolder, "folder to sync")
	rootCmd.Flags().StringP("email", "e", "", "drp account email")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "drpsync config file")
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		viper.SetConfigFile(cmd.Flag("config").Value.String())
	} else {
		viper.SetConfigFile(config.DefaultConfigPath)
	}
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("folder", cmd.Flags().Lookup("folder"))
	viper.BindPFlag("email", cmd.Flags().Lookup("email"))

	viper.SetEnvPrefix("DRPSYNC")
	viper.AutomaticEnv()

	return nil
}
