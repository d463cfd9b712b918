// Command voicecore wires together the capture, DSP, segmentation,
// wake, scheduling, and playback components into one running process:
// provider-selection switches pick concrete STT/LLM clients from config
// (TTS is always Lokutor), godotenv loads a local .env, and signal.Notify drives
// graceful shutdown across a capture-only device and a playback-only
// device feeding a batched-utterance pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/naptick/voicecore/internal/config"
	"github.com/naptick/voicecore/internal/logging"
	"github.com/naptick/voicecore/pkg/capture"
	"github.com/naptick/voicecore/pkg/cloud"
	"github.com/naptick/voicecore/pkg/devicestate"
	"github.com/naptick/voicecore/pkg/dsp"
	"github.com/naptick/voicecore/pkg/ledproj"
	"github.com/naptick/voicecore/pkg/metrics"
	"github.com/naptick/voicecore/pkg/pcm"
	"github.com/naptick/voicecore/pkg/playback"
	"github.com/naptick/voicecore/pkg/scheduler"
	"github.com/naptick/voicecore/pkg/segment"
	"github.com/naptick/voicecore/pkg/tools"
	"github.com/naptick/voicecore/pkg/wake"
)

func main() {
	logger := logging.New("voicecore")

	cfg, err := config.Load(os.Getenv("NAPTICK_CONFIG_FILE"))
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	stt, err := selectSTT(cfg)
	if err != nil {
		logger.Error("stt provider selection failed", "error", err)
		os.Exit(1)
	}
	llm, err := selectLLM(cfg)
	if err != nil {
		logger.Error("llm provider selection failed", "error", err)
		os.Exit(1)
	}
	if cfg.LokutorAPIKey == "" {
		logger.Error("lokutor_api_key must be set")
		os.Exit(1)
	}
	tts := cloud.NewLokutorTTS(cfg.LokutorAPIKey)

	logger.Info("providers configured", "stt", stt.Name(), "llm", llm.Name(), "tts", tts.Name())

	metricsSink := metrics.New()
	store := devicestate.New("naptick-voicecore", 1)
	leds := ledproj.New(nil, logger)
	toolExec := tools.New(store, nil, logger)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		logger.Error("malgo context init failed", "error", err)
		os.Exit(1)
	}
	defer mctx.Uninit()

	frontend := dsp.NewFrontend(dsp.Config{
		Channels:      cfg.Channels,
		FeedChunksize: cfg.FeedChunksize,
		VADThreshold:  cfg.VADThreshold,
		HangoverRise:  cfg.HangoverFramesRise,
		HangoverFall:  cfg.HangoverFramesFall,
		Wakeword:      dsp.NullWakewordDetector{}, // on-device wakenet model is out of scope
		WakeCooldown:  time.Duration(cfg.WakeCooldownMs) * time.Millisecond,
		Logger:        logger,
	})

	playDriver := playback.New(mctx, cfg.SampleRateHz, cfg.Channels, frontend)

	captureSrc := capture.New(capture.Config{
		SampleRateHz: cfg.SampleRateHz,
		Channels:     cfg.Channels,
		FrameSizeMs:  cfg.FrameSizeMs,
	})
	if err := captureSrc.Start(mctx); err != nil {
		logger.Error("capture device start failed", "error", err)
		os.Exit(1)
	}
	defer captureSrc.Stop()

	utterances := make(chan pcm.Utterance, 1) // depth-1: drop-newest back-pressure
	batcher := segment.New(utterances, cfg.MinUtteranceSamples, cfg.MaxUtteranceSamples, metricsSink)

	sched := scheduler.New(scheduler.Config{
		WakeWord:            cfg.WakeWord,
		MinWordsToInterrupt: cfg.MinWordsToInterrupt,
		Voice:               cfg.TTSVoice,
		STTTimeout:          cfg.STTTimeout,
		LLMTimeout:          cfg.LLMTimeout,
		TTSTimeout:          cfg.TTSTimeout,
		SystemPrompt:        "You are a helpful and concise voice assistant. Use short sentences suitable for speech.",
	}, stt, llm, tts, toolExec, store, leds, playDriver, metricsSink, logger)

	wakeSink := wake.New(time.Duration(cfg.WakeCooldownMs)*time.Millisecond, func(ctx context.Context, idx int) error {
		return sched.OnWake(ctx, idx)
	}, metricsSink, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go captureDSPLoop(ctx, captureSrc, frontend, batcher, wakeSink, logger)
	go schedulerLoop(ctx, sched, utterances, metricsSink, logger)

	fmt.Println("voicecore started. Listening for", cfg.WakeWord, "...")
	fmt.Println("Press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nShutting down...")
}

// captureDSPLoop pulls frames from the codec, runs them through the
// DSP front end, and hands enhanced frames to both the wake sink and
// the segment batcher.
func captureDSPLoop(ctx context.Context, src *capture.Source, fe *dsp.Frontend, batcher *segment.Batcher, wakeSink *wake.Sink, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, gap, err := src.PullFrame(ctx)
		if err != nil {
			if err == capture.ErrBusy || err == capture.ErrUnderflow {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warn("capture pull failed", "error", err)
			continue
		}
		if gap {
			logger.Warn("capture queue overflow, frames dropped")
		}

		if _, err := fe.Feed(frame); err != nil {
			logger.Warn("dsp feed failed", "error", err)
			continue
		}

		for {
			ef, ok := fe.Fetch()
			if !ok {
				break
			}
			wakeSink.Dispatch(ctx, ef)
			batcher.Feed(ef)
		}
	}
}

// schedulerLoop runs one interaction at a time, driven by completed
// utterances from the segment batcher. An utterance that reached the
// channel while an interaction was in flight is dropped and counted.
func schedulerLoop(ctx context.Context, sched *scheduler.Scheduler, utterances chan pcm.Utterance, metricsSink *metrics.Sink, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case utt := <-utterances:
			interactionID := uuid.New().String()
			logger.Info("interaction started", "interaction_id", interactionID, "samples", len(utt.Samples), "truncated", utt.Truncated)
			sched.HandleUtterance(ctx, utt)
			logger.Info("interaction finished", "interaction_id", interactionID, "state", sched.State())
			select {
			case <-utterances:
				metricsSink.IncDroppedUtterance()
			default:
			}
		}
	}
}

func selectSTT(cfg config.Config) (cloud.STTClient, error) {
	switch cfg.STTProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key must be set for openai STT")
		}
		return cloud.NewOpenAISTT(cfg.OpenAIAPIKey, "whisper-1"), nil
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("deepgram_api_key must be set for deepgram STT")
		}
		return cloud.NewDeepgramSTT(cfg.DeepgramAPIKey), nil
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			return nil, fmt.Errorf("assemblyai_api_key must be set for assemblyai STT")
		}
		return cloud.NewAssemblyAISTT(cfg.AssemblyAIAPIKey), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("groq_api_key must be set for groq STT")
		}
		return cloud.NewGroqSTT(cfg.GroqAPIKey, "whisper-large-v3-turbo"), nil
	default:
		return nil, fmt.Errorf("unknown stt_provider %q", cfg.STTProvider)
	}
}

func selectLLM(cfg config.Config) (cloud.LLMClient, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key must be set for openai LLM")
		}
		return cloud.NewOpenAILLM(cfg.OpenAIAPIKey, "gpt-4o"), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic_api_key must be set for anthropic LLM")
		}
		return cloud.NewAnthropicLLM(cfg.AnthropicAPIKey, "claude-3-5-sonnet-20241022"), nil
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("google_api_key must be set for google LLM")
		}
		return cloud.NewGoogleLLM(cfg.GoogleAPIKey, "gemini-1.5-flash"), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("groq_api_key must be set for groq LLM")
		}
		return cloud.NewGroqLLM(cfg.GroqAPIKey, "llama-3.3-70b-versatile"), nil
	default:
		return nil, fmt.Errorf("unknown llm_provider %q", cfg.LLMProvider)
	}
}
