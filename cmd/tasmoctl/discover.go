package main

import (
	"fmt"
	"time"

	"github.com/northlane/tasmoctl/device"
	"github.com/spf13/cobra"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Listen on the broker's LAN discovery topic and list responding device topics",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "how long to wait for discovery responses")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	mgr := device.NewManager(nil)
	cfg := device.MqttConfig{BrokerHost: brokerHost, BrokerPort: brokerPort, Username: username, Password: password}

	ids, err := mgr.Discover(cmd.Context(), cfg, discoverTimeout)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Fprintln(cmdOutput, "no devices responded")
		return nil
	}
	for _, id := range ids {
		name, _ := mgr.FriendlyName(id)
		if name != "" {
			fmt.Fprintf(cmdOutput, "%s (%s)\n", id, name)
		} else {
			fmt.Fprintln(cmdOutput, id)
		}
		mgr.Disconnect(id)
	}
	return nil
}
