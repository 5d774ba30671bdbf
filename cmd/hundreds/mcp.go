package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/hundreds/internal/gateway/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the bot as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout exposing the ask_hundreds,
list_players and get_player tools. Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := initShared(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	gw := mcpserver.NewGateway(sc.turnHandler("mcp"), sc.Dataset, sc.Answers, cfg.Gateways.MCP.ServerName(), version, logger)
	return gw.Start(ctx)
}
