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

	"github.com/AdamBeresnev/clanhub/internal/config"
	"github.com/AdamBeresnev/clanhub/internal/db"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/service"
	"github.com/AdamBeresnev/clanhub/internal/store"
	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		return err
	}

	repo := store.New(database)
	hub := live.NewHub(logger, cfg.CORSOrigins)
	clock := clockwork.NewRealClock()
	notifier := service.NewNotifier(hub, clock, logger, cfg.Jobs.MaxAttempts)

	publisher, closePublishers, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublishers()

	dispatcher, err := jobs.NewDispatcher(repo, publisher, clock, jobs.Config{
		PollInterval: cfg.Jobs.PollInterval,
		BatchSize:    cfg.Jobs.BatchSize,
		RetryDelay:   cfg.Jobs.RetryDelay,
		Lease:        cfg.Jobs.Lease,
		Retention:    cfg.Jobs.Retention,
	}, logger)
	if err != nil {
		return err
	}
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	defer dispatcher.Stop()

	app := &application{
		logger:      logger,
		hub:         hub,
		tournaments: service.NewTournamentService(repo, notifier),
		teams:       service.NewTeamService(repo, notifier),
		matches:     service.NewMatchService(repo, notifier),
		disputes:    service.NewDisputeService(repo, notifier),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(app, []byte(cfg.JWTSecret), cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "db_driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher always logs announcements and also posts them to Discord and NATS when those are configured.
func newPublisher(cfg *config.Config, logger *slog.Logger) (jobs.Publisher, func(), error) {
	fanout := jobs.Fanout{jobs.NewLogPublisher(logger)}
	var closers []func()

	if cfg.DiscordToken != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, nil, err
		}
		fanout = append(fanout, jobs.NewDiscordPublisher(session, cfg.DiscordChannelID))
		logger.Info("discord announcements enabled", "channel_id", cfg.DiscordChannelID)
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("clanhub"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return nil, nil, err
		}
		fanout = append(fanout, jobs.NewNATSPublisher(nc, cfg.NATSSubject))
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain nats connection", "error", err)
			}
		})
		logger.Info("nats announcements enabled", "subject", cfg.NATSSubject)
	}

	return fanout, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
