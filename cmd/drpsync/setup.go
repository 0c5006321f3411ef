package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/drp-sh/drpsync/internal/client/config"
	"github.com/drp-sh/drpsync/internal/drpsdk"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSetupCmd())
}

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively configure drpsync",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := cmd.Flag("config").Value.String()

			if cfg, err := config.Load(configPath); err == nil {
				fmt.Println("drpsync is already configured")
				printConfig(cfg)
				os.Exit(0)
			}

			cfg := &config.Config{
				ServerURL: config.DefaultServerURL,
				Folder:    config.DefaultFolder,
			}
			var password string
			var doLogin bool

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Server").
						Description("URL of the drp server").
						Value(&cfg.ServerURL),
					huh.NewInput().
						Title("Folder").
						Description("Local folder to sync").
						Value(&cfg.Folder),
					huh.NewConfirm().
						Title("Log in now?").
						Description("Anonymous sync works, but drops expire sooner").
						Value(&doLogin),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Email").
						Value(&cfg.Email).
						Validate(func(s string) error {
							if !strings.Contains(s, "@") {
								return fmt.Errorf("not an email address")
							}
							return nil
						}),
					huh.NewInput().
						Title("Password").
						EchoMode(huh.EchoModePassword).
						Value(&password),
				).WithHideFunc(func() bool { return !doLogin }),
			)

			if err := form.Run(); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			if doLogin {
				tokens, err := drpsdk.Login(cmd.Context(), cfg.ServerURL, cfg.Email, password)
				if err != nil {
					fmt.Printf("%s: %s\n", red("ERROR"), err)
					os.Exit(1)
				}
				cfg.RefreshToken = tokens.RefreshToken
			}

			if err := cfg.Validate(); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			if err := cfg.Save(configPath); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			fmt.Println(green("drpsync configured"))
			printConfig(cfg)
			fmt.Println("\nRun 'drpsync' to start syncing.")
		},
	}

	return cmd
}

func printConfig(cfg *config.Config) {
	fmt.Printf("Config: %s\n", green(cfg.Path))
	fmt.Printf("Server: %s\n", cyan(cfg.ServerURL))
	fmt.Printf("Folder: %s\n", cyan(cfg.Folder))
	if cfg.Email != "" {
		fmt.Printf("Email:  %s\n", cyan(cfg.Email))
	} else {
		fmt.Printf("Email:  %s\n", cyan("(anonymous)"))
	}
}
