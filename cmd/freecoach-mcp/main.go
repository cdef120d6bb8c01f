// Command freecoach-mcp serves the FreeCoach MCP tools over stdio for
// desktop MCP clients. With -url it proxies a remote FreeCoach server's REST
// API; otherwise it opens the configured store and generates in-process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/llm"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/storage/backend"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remote := flag.String("url", "", "base URL of a FreeCoach server (remote mode)")
	userID := flag.Int("user", 1, "user id for local mode")
	flag.Parse()

	// stdout carries the protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
		log.Info("mcp remote mode", "url", *remote)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		store, err := backend.Open(context.Background(), cfg.Database)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		client, err := llm.New(cfg.Generator.LLM(), log)
		if err != nil {
			log.Error("failed to create model client", "error", err)
			os.Exit(1)
		}
		orch := generation.New(store, client, generation.Config{
			Policy:      cfg.Policy,
			MaxAttempts: cfg.Generator.MaxAttempts,
		}, log)
		ds = mcp.NewLocal(store, orch)
		log.Info("mcp local mode", "driver", cfg.Database.Driver, "user_id", *userID)
	}

	s := mcp.New(ds, Version, log)
	uid := *userID
	err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, uid)
	}))
	if err != nil {
		log.Error("stdio server stopped", "error", err)
		os.Exit(1)
	}
}
