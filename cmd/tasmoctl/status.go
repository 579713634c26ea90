package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusAbbrev bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a device's Status 0 (or abbreviated Status) response as JSON",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusAbbrev, "abbreviated", false, "issue the bare Status query instead of Status 0")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dv, err := connectDevice(cmd.Context())
	if err != nil {
		return err
	}
	defer dv.Disconnect()

	var resp map[string]json.RawMessage
	if statusAbbrev {
		resp, err = dv.StatusAbbreviated(cmd.Context())
	} else {
		resp, err = dv.Status(cmd.Context())
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmdOutput, string(out))
	return nil
}

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Print a device's Status 10 energy-monitoring response as JSON",
	RunE:  runEnergy,
}

func runEnergy(cmd *cobra.Command, args []string) error {
	dv, err := connectDevice(cmd.Context())
	if err != nil {
		return err
	}
	defer dv.Disconnect()

	resp, err := dv.Energy(cmd.Context())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmdOutput, string(out))
	return nil
}
