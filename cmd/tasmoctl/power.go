package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var powerIndex uint8

var powerCmd = &cobra.Command{
	Use:   "power [on|off|toggle]",
	Short: "Query or change a relay's power state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPower,
}

func init() {
	powerCmd.Flags().Uint8Var(&powerIndex, "index", 1, "relay index, 1-based")
}

func runPower(cmd *cobra.Command, args []string) error {
	dv, err := connectDevice(cmd.Context())
	if err != nil {
		return err
	}
	defer dv.Disconnect()

	if len(args) == 0 {
		st := dv.State()
		p, ok := st.Power(powerIndex)
		if !ok {
			fmt.Fprintln(cmdOutput, "unknown")
			return nil
		}
		fmt.Fprintln(cmdOutput, strings.ToLower(p.String()))
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "on":
		return dv.SetPower(cmd.Context(), powerIndex, true)
	case "off":
		return dv.SetPower(cmd.Context(), powerIndex, false)
	case "toggle":
		if powerIndex != 1 {
			return fmt.Errorf("toggle is only wired for relay 1, got index %s", strconv.Itoa(int(powerIndex)))
		}
		return dv.PowerToggle(cmd.Context())
	default:
		return fmt.Errorf("unknown power action %q, want on/off/toggle", args[0])
	}
}
