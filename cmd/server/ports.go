// cmd/server/ports.go
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/discovery/serial"
)

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports visible to the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			scanner := serial.NewScanner(serial.SystemPorts, cfg.Device.PortPatterns, zap.NewNop())
			ports, err := scanner.Details()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}

			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tUSB\tVID\tPID\tSERIAL\tPRODUCT")
			for _, p := range ports {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n", p.Name, p.IsUSB, p.VID, p.PID, p.SerialNumber, p.Product)
			}
			return w.Flush()
		},
	}
}

