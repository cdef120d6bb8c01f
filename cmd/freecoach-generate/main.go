package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/generation"
	"github.com/claude/freecoach/internal/llm"
	"github.com/claude/freecoach/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.Int("user", 1, "user id to generate a program for")
	verbose := flag.Bool("v", false, "log pipeline stages")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// stdout carries the program JSON
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.Database)
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

	out, err := orch.Generate(ctx, *userID)
	if err != nil {
		var gerr *generation.Error
		if errors.As(err, &gerr) {
			fmt.Fprintf(os.Stderr, "generation failed: %s at %s\n", gerr.Kind, gerr.Stage)
			if gerr.Detail != "" {
				fmt.Fprintf(os.Stderr, "  %s\n", gerr.Detail)
			}
			for _, v := range gerr.Violations {
				fmt.Fprintf(os.Stderr, "  - %s\n", v)
			}
		} else {
			fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		}
		store.Close()
		os.Exit(1)
	}

	program, err := store.GetProgram(ctx, *userID, out.ProgramID)
	if err != nil {
		log.Error("failed to read back program", "program_id", out.ProgramID, "error", err)
		store.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(program); err != nil {
		log.Error("failed to write program", "error", err)
		store.Close()
		os.Exit(1)
	}
	log.Info("program generated", "program_id", out.ProgramID, "attempts", out.Attempts, "repairs", out.RepairsApplied)
}
