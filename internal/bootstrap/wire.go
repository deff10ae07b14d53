package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"memoai/internal/audio"
	"memoai/internal/config"
	"memoai/internal/domain"
	"memoai/internal/history"
	"memoai/internal/ports"
	"memoai/internal/providers/assemblyai"
	"memoai/internal/summarize"
	"memoai/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	History    ports.HistoryStore
	Summarizer ports.Summarizer
	Config     config.Config
	Logger     *zap.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return Services{}, err
	}

	store, err := history.NewFileStore(cfg.History.Path, logger)
	if err != nil {
		return Services{}, err
	}

	// Recording must work without an OpenAI key; summarization degrades to
	// a per-stop error event instead.
	var summarizer ports.Summarizer = disabledSummarizer{}
	if cfg.OpenAI.APIKey != "" {
		client, err := summarize.NewOpenAIClient(summarize.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}, logger)
		if err != nil {
			return Services{}, err
		}
		summarizer = client
	}

	controller := usecase.NewSessionController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		assemblyai.NewProvider(assemblyai.Config{
			APIKey:                       cfg.AssemblyAI.APIKey,
			Endpoint:                     cfg.AssemblyAI.Endpoint,
			Language:                     cfg.AssemblyAI.Language,
			FormatTurns:                  cfg.AssemblyAI.FormatTurns,
			EndOfTurnConfidenceThreshold: cfg.AssemblyAI.EndOfTurnConfidenceThreshold,
			MinEndOfTurnSilenceMs:        cfg.AssemblyAI.MinEndOfTurnSilenceMs,
			MaxTurnSilenceMs:             cfg.AssemblyAI.MaxTurnSilenceMs,
		}, logger),
		summarizer,
		store,
		clipboard,
		eventSink,
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "pcm_s16le",
				InterimResults: true,
			},
			ChunkSize:      cfg.Session.ChunkSize,
			StreamingGrace: cfg.Session.StreamingGrace,
		},
	)

	return Services{
		Controller: controller,
		History:    store,
		Summarizer: summarizer,
		Config:     cfg,
		Logger:     logger,
	}, nil
}

type disabledSummarizer struct{}

func (disabledSummarizer) Summarize(_ context.Context, _ string, _ string, _ domain.SummaryStyle) (string, error) {
	return "", errors.New("summarization is not configured: set OPENAI_API_KEY")
}
