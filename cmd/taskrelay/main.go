// @title			TaskRelay API
// @version		1.0
// @description	Task lifecycle service with command handling and versioned event fan-out.
// @BasePath		/api/v1

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/taskrelay/taskrelay/internal/bus"
	"github.com/taskrelay/taskrelay/internal/config"
	"github.com/taskrelay/taskrelay/internal/database"
	"github.com/taskrelay/taskrelay/internal/events"
	"github.com/taskrelay/taskrelay/internal/handler"
	"github.com/taskrelay/taskrelay/internal/logger"
	"github.com/taskrelay/taskrelay/internal/sink"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskrelay",
		Usage: "Task lifecycle service with event fan-out",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Aliases: []string{"r"},
				Value:   config.DefaultRedisAddr,
				Usage:   "Redis address for event sinks and the command stream",
				EnvVars: []string{"REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "notify-channel",
				Value:   config.DefaultNotifyChannel,
				Usage:   "Redis pub/sub channel for notification events",
				EnvVars: []string{"NOTIFY_CHANNEL"},
			},
			&cli.StringFlag{
				Name:    "event-stream",
				Value:   config.DefaultEventStream,
				Usage:   "Redis stream integration events are appended to",
				EnvVars: []string{"EVENT_STREAM"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "consume",
				Usage: "Consume commands from the Redis command stream",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "command-stream",
						Value:   config.DefaultCommandStream,
						Usage:   "Redis stream to read inbound command messages from",
						EnvVars: []string{"COMMAND_STREAM"},
					},
					&cli.StringFlag{
						Name:    "consumer-group",
						Value:   config.DefaultConsumerGroup,
						Usage:   "Consumer group for the command stream",
						EnvVars: []string{"CONSUMER_GROUP"},
					},
					&cli.StringFlag{
						Name:    "consumer-name",
						Value:   "",
						Usage:   "Consumer name within the group (defaults to hostname)",
						EnvVars: []string{"CONSUMER_NAME"},
					},
				},
				Action: runConsume,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// app bundles the wired service graph shared by the serve and consume
// commands.
type app struct {
	handler    *handler.Handler
	dispatcher *events.Dispatcher
	rdb        *goredis.Client
	db         *database.DB
}

func (a *app) close() {
	if err := a.rdb.Close(); err != nil {
		slog.Warn("redis close failed", "error", err)
	}
	a.db.Close()
}

func buildApp(ctx context.Context, c *cli.Context) (*app, error) {
	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := sink.NewRedisClient(c.String("redis-addr"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	dispatcher := events.NewDispatcher(
		sink.NewNotifier(rdb, c.String("notify-channel")),
		sink.NewStream(rdb, c.String("event-stream")),
	)

	return &app{
		handler:    handler.New(db.Pool(), dispatcher),
		dispatcher: dispatcher,
		rdb:        rdb,
		db:         db,
	}, nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	a, err := buildApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()

	mux := http.NewServeMux()
	a.handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runConsume(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()

	name := c.String("consumer-name")
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "taskrelay"
		}
		name = hostname
	}

	consumer := bus.NewConsumer(
		a.rdb,
		a.handler.TaskService(),
		bus.NewRegistry(),
		a.dispatcher,
		c.String("command-stream"),
		c.String("consumer-group"),
		name,
	)

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consumer error: %w", err)
	}

	slog.Info("consumer stopped")
	return nil
}
