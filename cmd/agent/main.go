package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutroom/cutroom-agent/internal/api"
	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/logging"
	"github.com/cutroom/cutroom-agent/internal/project"
	"github.com/cutroom/cutroom-agent/internal/remote"
	"github.com/cutroom/cutroom-agent/internal/store"
	"github.com/cutroom/cutroom-agent/internal/workflow"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutroom agent", "version", Version, "data_dir", cfg.DataDir())

	db, err := store.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := store.NewRepository(db.Conn())

	agentID, err := ensureAgentID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure agent ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    CUTROOM AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Agent ID:   %-45s ║\n", agentID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	transcriber, scriptGen, exporter := buildCollaborators(cfg, logger)

	engine := workflow.NewEngine(workflow.Config{
		Transcriber:     transcriber,
		ScriptGenerator: scriptGen,
		Exporter:        exporter,
		Logger:          logging.WithComponent(logger, "workflow"),
		ExportFPS:       cfg.ExportFPS(),
		OnChange:        sessionSaver(repo, logger),
	})

	if saved, err := repo.LoadSession(context.Background()); err != nil {
		logger.Warn("failed to load saved session", "error", err)
	} else if saved != nil {
		engine.Load(saved)
		logger.Info("session resumed", "project", saved.Name, "videos", len(saved.Videos))
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Engine:    engine,
		Tokens:    repo,
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		AgentID:   agentID,
		Version:   Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildCollaborators wires the three stage clients: HTTP when a
// service URL is configured, local stubs otherwise. Only the exporter
// stub can do real work offline (it renders the EDL in-process).
func buildCollaborators(cfg config.Config, logger *slog.Logger) (remote.Transcriber, remote.ScriptGenerator, remote.Exporter) {
	var transcriber remote.Transcriber
	if url := cfg.TranscriberURL(); url != "" {
		transcriber = remote.NewHTTPTranscriber(url, cfg.ServiceToken(), cfg.TranscribeTimeout(), logging.WithStage(logger, "transcribe"))
		logger.Info("transcription service configured", "base_url", url)
	} else {
		transcriber = remote.NewStubTranscriber(logging.WithStage(logger, "transcribe"))
	}

	var scriptGen remote.ScriptGenerator
	if url := cfg.ScriptGenURL(); url != "" {
		scriptGen = remote.NewHTTPScriptGenerator(url, cfg.ServiceToken(), cfg.ScriptGenTimeout(), logging.WithStage(logger, "script"))
		logger.Info("script service configured", "base_url", url)
	} else {
		scriptGen = remote.NewStubScriptGenerator(logging.WithStage(logger, "script"))
	}

	var exporter remote.Exporter
	if url := cfg.ExporterURL(); url != "" {
		exporter = remote.NewHTTPExporter(url, cfg.ServiceToken(), cfg.ExportTimeout(), logging.WithStage(logger, "export"))
		logger.Info("export service configured", "base_url", url)
	} else {
		exporter = remote.NewLocalExporter(logging.WithStage(logger, "export"))
		logger.Info("no export service configured, rendering EDL locally")
	}

	return transcriber, scriptGen, exporter
}

// sessionSaver persists each project snapshot and archives trail
// entries not yet written. The engine serializes OnChange deliveries
// in mutation order, so no extra locking is needed here. Persistence
// failures are logged, never surfaced: the in-memory session stays
// authoritative.
func sessionSaver(repo store.Repository, logger *slog.Logger) func(*project.Project) {
	archived := 0

	return func(p *project.Project) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := repo.SaveSession(ctx, p); err != nil {
			logger.Warn("failed to save session", "error", err)
		}

		if archived > len(p.Trail) {
			// Trail restarted (resumed session snapshots carry no
			// trail); re-archive from the beginning.
			archived = 0
		}
		if archived < len(p.Trail) {
			if err := repo.AppendTrail(ctx, p.Trail[archived:]); err != nil {
				logger.Warn("failed to archive trail", "error", err)
				return
			}
			archived = len(p.Trail)
		}
	}
}

func ensureAgentID(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "agent_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	agentID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "agent_id", agentID); err != nil {
		return "", err
	}

	return agentID, nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
