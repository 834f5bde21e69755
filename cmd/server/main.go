// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fingerprint-bridge",
		Short: "Bridge between a serial fingerprint sensor and HTTP/WebSocket clients",
		Long: `fingerprint-bridge discovers the fingerprint sensor on a serial port,
verifies it by its ready signature, keeps the connection alive across
unplugs and exposes its log stream and command channel over HTTP.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApplication(configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml, ./config/config.yaml, /etc/fingerprint-bridge/config.yaml)")

	root.AddCommand(newPortsCommand())
	return root
}
