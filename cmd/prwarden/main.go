package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	anthropicadapter "github.com/jthorburn/prwarden/internal/adapter/driven/anthropic"
	githubadapter "github.com/jthorburn/prwarden/internal/adapter/driven/github"
	jiraadapter "github.com/jthorburn/prwarden/internal/adapter/driven/jira"
	mailadapter "github.com/jthorburn/prwarden/internal/adapter/driven/mail"
	sqliteadapter "github.com/jthorburn/prwarden/internal/adapter/driven/sqlite"
	httphandler "github.com/jthorburn/prwarden/internal/adapter/driving/http"
	"github.com/jthorburn/prwarden/internal/application"
	"github.com/jthorburn/prwarden/internal/config"
	"github.com/jthorburn/prwarden/internal/dispatch"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
	"github.com/jthorburn/prwarden/internal/loopguard"
	"github.com/jthorburn/prwarden/internal/risk"
)

const journalRetention = 7 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"bot_login", cfg.BotLogin,
		"block_at", cfg.BlockAt.String(),
		"jira_enabled", cfg.JiraEnabled(),
		"mail_enabled", cfg.MailEnabled(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the journal database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	journal := sqliteadapter.NewJournalRepo(db)
	git := githubadapter.NewClient(cfg.GitHubToken)
	classifier := anthropicadapter.New(cfg.AnthropicAPIKey, cfg.RiskModel)

	var ticketer driven.Ticketer = jiraadapter.Disabled{}
	if cfg.JiraEnabled() {
		ticketer = jiraadapter.NewClient(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraToken, cfg.JiraProjectKey, slog.Default())
	}

	var notifier driven.Notifier = mailadapter.Disabled{}
	if cfg.MailEnabled() {
		notifier = mailadapter.NewNotifier(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, cfg.MailTo, slog.Default())
	}

	// 6. Load knowledge documents and build the risk engine.
	policyDoc := risk.LoadDoc(cfg.PolicyDocPath)
	incidentDoc := risk.LoadDoc(cfg.IncidentDocPath)
	engine := risk.New(classifier, cfg.ClassifyTimeout, cfg.BlockAt, policyDoc, incidentDoc, slog.Default())

	// 7. Assemble the application core.
	dispatcher := dispatch.New(git, ticketer, notifier, journal, slog.Default())
	guard := loopguard.New(cfg.BotLogin)
	governor := application.NewGovernor(git, engine, dispatcher, guard, journal, slog.Default())

	// 8. Start a background journal pruner so the file stays bounded.
	go pruneLoop(ctx, journal)

	// 9. Create the HTTP ingress and start serving.
	handler := httphandler.NewHandler(governor, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("prwarden started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout so in-flight deliveries drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// pruneLoop deletes journal entries past the retention window once a day.
func pruneLoop(ctx context.Context, journal *sqliteadapter.JournalRepo) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := journal.Prune(ctx, journalRetention)
			if err != nil {
				slog.Warn("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("journal pruned", "entries", n)
			}
		}
	}
}
