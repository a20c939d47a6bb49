// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/jcodagnone/pinpoint/editor"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/spf13/cobra"
)

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Encode and decode location codes",
}

var codeEncodeCmd = &cobra.Command{
	Use:   "encode <lat> <lng>",
	Short: "Print the location code of a position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := editor.ParseCoordinate(args[0])
		if err != nil {
			return err
		}

		lng, err := editor.ParseCoordinate(args[1])
		if err != nil {
			return err
		}

		p := spatial.Point{Lat: lat, Lng: lng}.Normalize()
		fmt.Fprintln(cmd.OutOrStdout(), spatial.Encode(p))

		return nil
	},
}

var codeDecodeCmd = &cobra.Command{
	Use:   "decode <code>",
	Short: "Print the position a location code stands for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := spatial.Decode(args[0])
		if !ok {
			return fmt.Errorf("%q is not a location code", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%.7f,%.7f\n", p.Lat, p.Lng)

		if spatial.IsLegacy(args[0]) {
			fmt.Fprintf(out, "⚠️ legacy code, canonical form is %s\n", spatial.Encode(p))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
	codeCmd.AddCommand(codeEncodeCmd)
	codeCmd.AddCommand(codeDecodeCmd)
}
