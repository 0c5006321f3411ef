package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/drp-sh/drpsync/internal/client/config"
	"github.com/drp-sh/drpsync/internal/drpsdk"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the drp server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cmd.Flag("config").Value.String()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("no config found, run 'drpsync setup' first: %w", err)
			}
			cmd.SilenceUsage = true

			if email != "" {
				cfg.Email = email
			}

			var password string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Email").
					Value(&cfg.Email),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password),
			))
			if err := form.Run(); err != nil {
				return err
			}

			tokens, err := drpsdk.Login(cmd.Context(), cfg.ServerURL, cfg.Email, password)
			if err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			cfg.RefreshToken = tokens.RefreshToken
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			fmt.Printf("%s as %s\n", green("Logged in"), cyan(cfg.Email))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "drp account email")

	return cmd
}
