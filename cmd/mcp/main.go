package main

import (
	"context"
	"os"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/server"
	"github.com/agenthands/taxgraph/internal/tools"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := config.NewLogger(cfg.Log)
	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	ctx := context.Background()
	srv, err := server.NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialise analyzer: %v", err)
	}
	defer srv.Close(ctx)

	if _, _, err := srv.Reload(ctx); err != nil {
		log.WithError(err).Fatal("failed to load filings")
	}

	s := tools.NewServer("taxgraph", version, &tools.ToolDependencies{Analyzer: srv.Analyzer, Log: log})
	if err := mcpserver.ServeStdio(s); err != nil {
		log.WithError(err).Fatal("mcp server stopped")
	}
}
