// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/jcodagnone/pinpoint/store"
	"github.com/jcodagnone/pinpoint/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Maintain the property location database",
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many properties have a pin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		total, pinned, err := repo.Count()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🏠 %s properties\n", textutils.FormatInt(int64(total)))
		fmt.Fprintf(out, "📍 %s pinned\n", textutils.FormatInt(int64(pinned)))

		return nil
	},
}

var storeExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export every location to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := store.ExportToJSON(repo, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported %s locations to %s\n", textutils.FormatInt(int64(n)), args[0])

		return nil
	},
}

var storeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import locations from a JSON export, replacing records with the same property id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		var (
			bar      *progressbar.ProgressBar
			progress func(done, total int)
		)

		if isatty.IsTerminal(os.Stderr.Fd()) {
			progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetDescription("Importing "+args[0]),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}

				_ = bar.Set(done)
			}
		}

		n, err := store.ImportFromJSON(repo, args[0], progress)
		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %s locations from %s\n", textutils.FormatInt(int64(n)), args[0])

		return nil
	},
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate-codes",
	Short: "Re-encode legacy lat,lng location codes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := repo.MigrateLegacyCodes()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Re-encoded %s codes\n", textutils.FormatInt(int64(n)))

		return nil
	},
}

var storeSharedPinsCmd = &cobra.Command{
	Use:   "shared-pins",
	Short: "List groups of properties pinned at the same place",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		radius, err := cmd.Flags().GetFloat64("radius-m")
		if err != nil {
			return err
		}

		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		pins, err := store.SharedPins(repo, radius)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, pin := range pins {
			fmt.Fprintf(out, "📍 %s (%d)\n", pin.Code, len(pin.Properties))

			for _, loc := range pin.Properties {
				fmt.Fprintf(out, "   %s %s\n", loc.PropertyID, loc.Address)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeImportCmd)
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storeSharedPinsCmd)
	storeSharedPinsCmd.Flags().Float64("radius-m", 5, "Distance under which two pins are considered the same")
}
