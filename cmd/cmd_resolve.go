// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jcodagnone/pinpoint/geolocate"
	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/spf13/cobra"
)

var resolveOptions struct {
	Address  string
	City     string
	State    string
	GPS      string
	GPSError int
	Prior    string
	Code     string
	ReadOnly bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the initial pin position from the available evidence",
	Long: `
Resolves where a property pin starts, printing the position, its location code
and the diagnostic as JSON. Nothing is stored.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := rootOptions.resolverConfig()
		if err != nil {
			return err
		}

		req := resolve.Request{
			PriorCode: resolveOptions.Code,
			Address:   resolveOptions.Address,
			City:      resolveOptions.City,
			State:     resolveOptions.State,
			Editable:  !resolveOptions.ReadOnly,
		}

		if resolveOptions.Prior != "" {
			p, err := parsePoint(resolveOptions.Prior)
			if err != nil {
				return fmt.Errorf("--prior: %w", err)
			}

			req.Prior = &p
		}

		var fix *spatial.Point

		if resolveOptions.GPS != "" {
			p, err := parsePoint(resolveOptions.GPS)
			if err != nil {
				return fmt.Errorf("--gps: %w", err)
			}

			fix = &p
		}

		geocoder, err := rootOptions.newGeocoder(cmd.Context(), nil)
		if err != nil {
			return err
		}

		r := resolve.New(geocoder, geolocate.FromReport(fix, resolveOptions.GPSError), cfg)
		outcome := r.Resolve(cmd.Context(), req)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(outcome)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	flags := resolveCmd.Flags()
	flags.StringVar(&resolveOptions.Address, "address", "", "Street address")
	flags.StringVar(&resolveOptions.City, "city", "", "City")
	flags.StringVar(&resolveOptions.State, "state", "", "State or province")
	flags.StringVar(&resolveOptions.GPS, "gps", "", "Device position as lat,lng")
	flags.IntVar(
		&resolveOptions.GPSError,
		"gps-error",
		2,
		"Geolocation error code when --gps is absent (1 denied, 2 unavailable, 3 timeout)",
	)
	flags.StringVar(&resolveOptions.Prior, "prior", "", "Stored position as lat,lng")
	flags.StringVar(&resolveOptions.Code, "code", "", "Stored location code")
	flags.BoolVar(&resolveOptions.ReadOnly, "read-only", false, "Resolve for a read-only view (never asks for GPS)")
}
