package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Classroom/internal/adapters/http"
	"github.com/dkeye/Classroom/internal/adapters/rest"
	"github.com/dkeye/Classroom/internal/adapters/rtc"
	sig "github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/adapters/transport"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	api, err := rest.NewClient(rest.Config{BaseURL: cfg.APIBaseURL, Token: cfg.AuthToken, Timeout: cfg.APITimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("rest client")
	}

	user := cfg.User()
	events := transport.New(
		func() core.SignalConnection {
			return sig.NewWsSignalConn(sig.Config{
				URL:        cfg.SignalURL,
				ReadLimit:  cfg.ReadLimit,
				PingPeriod: cfg.PingPeriod,
				WriteWait:  cfg.WriteWait,
				SendBuffer: cfg.SendBuffer,
			})
		},
		func() core.MediaConnection {
			return rtc.NewWebRTCConnection(rtc.Config{
				ICEServers: cfg.ICEServers,
				StreamID:   string(user.ID),
				RemoteIdle: cfg.RemoteIdle,
			})
		},
		transport.Options{Buffer: cfg.InboxSize},
	)

	store := orch.New(events, api, nil, orch.Options{
		ChatEchoWindow:     cfg.ChatEchoWindow,
		ChatPageSize:       cfg.ChatPageSize,
		WhiteboardInterval: cfg.WhiteboardInterval,
		MediaCallTimeout:   cfg.MediaCallTimeout,
		InboxSize:          cfg.InboxSize,
		SubscriberBuffer:   cfg.SubscriberBuffer,
	})
	// The store outlives ctx so Leave can still reach it during shutdown.
	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = store.Run(runCtx)
	}()

	snap, err := store.Join(ctx, orch.JoinRequest{
		SessionID: domain.SessionID(cfg.SessionID),
		User:      user,
		Token:     cfg.AuthToken,
	})
	if err != nil {
		log.Error().Err(err).Str("session", cfg.SessionID).Msg("join failed")
	} else {
		log.Info().Str("session", string(snap.SessionID)).Int("participants", len(snap.Participants)).
			Int("recordings", len(snap.Recordings)).Msg("joined")
	}

	r := router.SetupRouter(ctx, cfg, store)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Classroom inspector started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := store.Leave(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("leave failed")
	}
	stopRun()
	<-runDone
	log.Info().Msg("Client exited gracefully")
}
