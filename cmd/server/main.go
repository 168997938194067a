package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sulisumenpeter/shield-voice-aware/internal/agent"
	"github.com/sulisumenpeter/shield-voice-aware/internal/antispoof"
	"github.com/sulisumenpeter/shield-voice-aware/internal/auth"
	"github.com/sulisumenpeter/shield-voice-aware/internal/config"
	"github.com/sulisumenpeter/shield-voice-aware/internal/events"
	"github.com/sulisumenpeter/shield-voice-aware/internal/httpserver"
	"github.com/sulisumenpeter/shield-voice-aware/internal/llm"
	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/store"
	"github.com/sulisumenpeter/shield-voice-aware/internal/transcript"
	"github.com/sulisumenpeter/shield-voice-aware/internal/tts"
	"github.com/sulisumenpeter/shield-voice-aware/internal/usecase"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	m := metrics.DefaultMetrics

	publisher := events.New(events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicSegments: cfg.Kafka.TopicSegments,
		TopicAlerts:   cfg.Kafka.TopicAlerts,
	}, m)
	defer func() { _ = publisher.Close() }()

	deps := agent.Deps{
		Transcriber: transcript.NewWhisperClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.TranscribeModel),
		Classifier:  llm.NewClassifier(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ClassifierModel),
		Metrics:     m,
	}
	if cfg.AntiSpoof.Active() {
		deps.Spoof = antispoof.NewClient(cfg.AntiSpoof.Token, cfg.AntiSpoof.Model, cfg.AntiSpoof.Timeout)
	}

	sc := store.Config{URL: cfg.SupabaseURL, ServiceRoleKey: cfg.SupabaseServiceKey, Bucket: cfg.SupabaseBucket}
	var primary store.Recorder = store.NewLogOnly()
	if sc.Configured() {
		sb, err := store.New(sc)
		if err != nil {
			log.Fatal().Err(err).Msg("supabase init failed")
		}
		primary = sb
		if sc.Bucket != "" {
			deps.Archiver = sb
		}
	}
	deps.Recorder = store.NewBestEffort(store.Multi{primary, publisher}, m)

	pipeline := agent.NewPipeline(deps, agent.Options{
		SpoofWeight:    cfg.AntiSpoof.Weight,
		SpoofThreshold: cfg.AntiSpoof.Threshold,
		ChunkTarget:    cfg.ChunkTarget,
	})

	var synth httpserver.Synthesizer
	if cfg.ElevenLabsKey != "" {
		synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey)
	}

	srv := httpserver.New(httpserver.Deps{
		Pipeline:        pipeline,
		Verifier:        auth.NewVerifier(cfg.MediaTokenSecret, cfg.TokenMaxSkew),
		Streams:         usecase.NewStreamService(cfg.MediaTokenSecret, cfg.PublicBaseURL),
		Synth:           synth,
		TwilioAuthToken: cfg.TwilioAuthToken,
		Metrics:         m,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
}
