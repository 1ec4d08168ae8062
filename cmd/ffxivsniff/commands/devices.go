package commands

import (
	"fmt"
	"strings"

	"github.com/karashiiro/ffxivsniff/internal/capturedrv"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable network interfaces",
	Long:  `List the network interfaces pcap is able to open, for use with "capture --device".`,
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := capturedrv.Devices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No capturable devices found.")
		return nil
	}

	for _, d := range devices {
		fmt.Printf("%s\n", d.Name)
		if d.Description != "" {
			fmt.Printf("  %s\n", d.Description)
		}
		if len(d.Addresses) > 0 {
			fmt.Printf("  addresses: %s\n", strings.Join(d.Addresses, ", "))
		}
	}

	return nil
}
