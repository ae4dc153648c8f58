package main

import (
	"fmt"
	"log/slog"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/transport"
)

func serveCmd() *cobra.Command {
	var (
		addr   string
		useTLS bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket chat server",
		Long: `Serve the chat protocol on /ws and a liveness probe on /health.

Clients pass a bearer token in the Authorization header or the ?token query
parameter. Connections without a valid token are served as guests.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = appConfig.Server.Addr
			}
			if useTLS {
				appConfig.Server.TLS = true
			}

			di := newInjector(appConfig)
			defer shutdown(di)

			server, err := do.Invoke[*transport.Server](di)
			if err != nil {
				return fmt.Errorf("failed to build server: %w", err)
			}

			slog.Info("Starting chat server",
				"addr", addr,
				"default_provider", appConfig.LLM.Default,
				"fallback_provider", appConfig.LLM.Fallback,
				"mirror", appConfig.Session.Mirror,
				"tls", appConfig.Server.TLS)
			return server.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve wss:// with a self-signed localhost certificate")
	return cmd
}
