// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/jcodagnone/pinpoint/server"
	"github.com/jcodagnone/pinpoint/store"
	"github.com/spf13/cobra"
)

var serveOptions struct {
	Addr     string
	SeedFile string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the property location API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := rootOptions.resolverConfig()
		if err != nil {
			return err
		}

		db, repo, err := rootOptions.openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		seeded, n, err := store.SeedIfEmpty(repo, serveOptions.SeedFile)
		if err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}

		if seeded {
			log.Printf("Seeded %d locations from %s", n, serveOptions.SeedFile)
		}

		migrated, err := repo.MigrateLegacyCodes()
		if err != nil {
			return fmt.Errorf("migrating legacy codes: %w", err)
		}

		if migrated > 0 {
			log.Printf("Re-encoded %d legacy location codes", migrated)
		}

		geocoder, err := rootOptions.newGeocoder(cmd.Context(), repo)
		if err != nil {
			return err
		}

		metrics, err := server.NewMetrics(nil)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}

		return server.NewServer(repo, resolve.New(geocoder, nil, cfg), metrics).Run(serveOptions.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", "localhost:8080", "Listen address")
	serveCmd.Flags().StringVar(
		&serveOptions.SeedFile,
		"seed",
		"locations.json",
		"Export file loaded when the database is empty",
	)
}
