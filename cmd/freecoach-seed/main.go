package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/prompt"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/storage/backend"
	"github.com/claude/freecoach/internal/upload"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	catalogPath := flag.String("file", "", "path to exercise catalog JSON")
	prefsPath := flag.String("prefs", "", "optional preferences JSON to store for -login")
	login := flag.String("login", "local", "user login the preferences belong to")
	remote := flag.String("url", "", "upload the catalog to this FreeCoach server instead of the local store")
	apiKey := flag.String("api-key", os.Getenv("FREECOACH_AUTH_API_KEY"), "admin API key for -url")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *catalogPath == "" && *prefsPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: freecoach-seed -config config.yaml -file exercises.json [-prefs prefs.json -login local]\n")
		fmt.Fprintf(os.Stderr, "       freecoach-seed -url https://freecoach.tailnet -api-key KEY -file exercises.json\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *remote != "" {
		if err := uploadCatalog(*remote, *apiKey, *catalogPath, log); err != nil {
			log.Error("catalog upload failed", "url", *remote, "error", err)
			os.Exit(1)
		}
		return
	}

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

	if *catalogPath != "" {
		if err := seedCatalog(ctx, store, *catalogPath, log); err != nil {
			log.Error("catalog seed failed", "file", *catalogPath, "error", err)
			store.Close()
			os.Exit(1)
		}
	}
	if *prefsPath != "" {
		if err := seedPreferences(ctx, store, *prefsPath, *login, log); err != nil {
			log.Error("preferences seed failed", "file", *prefsPath, "error", err)
			store.Close()
			os.Exit(1)
		}
	}
}

func readCatalog(path string) ([]models.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return catalog.Parse(f)
}

func uploadCatalog(url, apiKey, path string, log *slog.Logger) error {
	if path == "" {
		return errors.New("-url needs -file")
	}
	entries, err := readCatalog(path)
	if err != nil {
		return err
	}
	res, err := upload.NewClient(url, apiKey).SendCatalog(context.Background(), entries)
	if err != nil {
		return err
	}
	log.Info("catalog uploaded", "received", res.Received, "written", res.Written)
	return nil
}

func seedCatalog(ctx context.Context, store storage.Store, path string, log *slog.Logger) error {
	entries, err := readCatalog(path)
	if err != nil {
		return err
	}
	n, err := store.InsertExercises(ctx, entries)
	if err != nil {
		return err
	}
	log.Info("catalog seeded", "received", len(entries), "written", n)
	return nil
}

func seedPreferences(ctx context.Context, store storage.Store, path, login string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading preferences: %w", err)
	}
	var prefs models.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return fmt.Errorf("decoding preferences: %w", err)
	}

	display := login
	if login == "local" {
		display = "Local Dev User"
	}
	uid, err := store.GetOrCreateUser(ctx, login, display)
	if err != nil {
		return err
	}
	prefs.UserID = uid
	if err := prompt.CheckPreferences(prefs); err != nil {
		return err
	}
	if err := store.UpsertPreferences(ctx, prefs); err != nil {
		return err
	}
	log.Info("preferences seeded", "login", login, "user_id", uid)
	return nil
}
