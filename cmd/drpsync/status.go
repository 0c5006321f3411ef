package main

import (
	"fmt"
	"sort"

	"github.com/drp-sh/drpsync/internal/client/config"
	syncpkg "github.com/drp-sh/drpsync/internal/client/sync"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked files and their sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cmd.Flag("config").Value.String()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("no config found, run 'drpsync setup' first: %w", err)
			}
			cmd.SilenceUsage = true

			printConfig(cfg)

			store := syncpkg.NewStateStore(cfg.StatePath())
			if err := store.Load(); err != nil {
				return err
			}

			files := store.Snapshot()
			if len(files) == 0 {
				fmt.Println("\nNo files tracked yet.")
				return nil
			}

			paths := make([]string, 0, len(files))
			for path := range files {
				paths = append(paths, path)
			}
			sort.Strings(paths)

			fmt.Printf("\n%-10s  %-40s  %-10s  %-16s  %s\n", "STATUS", "PATH", "SIZE", "MODIFIED", "KEY")
			for _, path := range paths {
				f := files[path]
				fmt.Printf("%-10s  %-40s  %-10s  %-16s  %s\n",
					colorStatus(f.Status),
					path,
					humanize.Bytes(uint64(f.Size)),
					humanize.Time(f.ModTime),
					f.Key,
				)
			}
			fmt.Printf("\n%d files tracked\n", len(files))
			return nil
		},
	}

	return cmd
}

func colorStatus(s syncpkg.Status) string {
	switch s {
	case syncpkg.StatusSynced:
		return color.HiGreenString(string(s))
	case syncpkg.StatusPending, syncpkg.StatusStale:
		return color.HiYellowString(string(s))
	case syncpkg.StatusConflicted:
		return color.HiRedString(string(s))
	default:
		return string(s)
	}
}
