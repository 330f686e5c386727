package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-hubspot-connector/crm"
	"github.com/jrsteele09/go-hubspot-connector/internal/config"
	"github.com/jrsteele09/go-hubspot-connector/oauthflow"
	"github.com/jrsteele09/go-hubspot-connector/server"
	"github.com/jrsteele09/go-hubspot-connector/transient"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	config.LoadEnvFiles(".env", ".env.local")
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger := newLogger(c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	displayAppname(c.GetAppName())

	store, closeStore, err := newStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	flow, err := oauthflow.New(oauthflow.Config{
		ClientID:             c.GetClientID(),
		ClientSecret:         c.GetClientSecret(),
		RedirectURI:          c.GetRedirectURI(),
		Scopes:               c.GetScopes(),
		AuthURL:              c.GetAuthURL(),
		TokenURL:             c.GetTokenURL(),
		StateTTL:             c.GetStateTTL(),
		DefaultCredentialTTL: c.GetDefaultCredentialTTL(),
		HTTPTimeout:          c.GetHTTPTimeout(),
	}, transient.Prefixed(store, c.GetKeyPrefix()), oauthflow.WithLogger(logger.With().Str("component", "oauthflow").Logger()))
	if err != nil {
		return fmt.Errorf("oauthflow.New: %w", err)
	}

	crmLogger := logger.With().Str("component", "crm").Logger()
	records := crm.NewClient(crm.Options{
		BaseURL:   c.GetAPIBaseURL(),
		Timeout:   c.GetHTTPTimeout(),
		PageLimit: c.GetPageLimit(),
		Strict:    c.GetStrictFetch(),
		Logger:    &crmLogger,
	})

	opts := []server.Option{server.WithLogger(logger)}
	if pinger, ok := store.(server.Pinger); ok {
		opts = append(opts, server.WithHealthCheck(pinger))
	}
	handler, err := server.New(c, flow, records, opts...)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Logger
}

func newStore(c config.Config) (transient.Store, func(), error) {
	if c.GetStoreDriver() == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory store; state and credentials are lost on restart")
		return transient.NewInMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", c.GetRedisAddr(), err)
	}
	return transient.NewRedisStore(client), func() { _ = client.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
