package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	LogLevel      string
	LogFormat     string
	PublicBaseURL string

	MediaTokenSecret string
	TwilioAuthToken  string
	TokenMaxSkew     time.Duration
	ChunkTarget      time.Duration

	OpenAIKey       string
	OpenAIBaseURL   string
	ClassifierModel string
	TranscribeModel string

	AntiSpoof AntiSpoofConfig

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	Kafka KafkaConfig

	ElevenLabsKey string
}

// AntiSpoofConfig configures the synthetic voice detector and its weight in fusion.
type AntiSpoofConfig struct {
	Enabled   bool
	Token     string
	Model     string
	Threshold float64
	Timeout   time.Duration
	Weight    float64
}

// Active reports whether requests should be sent to the detector at all.
func (a AntiSpoofConfig) Active() bool { return a.Enabled && a.Token != "" }

// KafkaConfig configures the segment broadcaster.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicSegments string
	TopicAlerts   string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := Config{
		HTTPAddress:   getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		MediaTokenSecret: os.Getenv("TWILIO_MEDIA_TOKEN_SECRET"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TokenMaxSkew:     getEnvMillis("TOKEN_MAX_SKEW_MS", 60000),
		ChunkTarget:      getEnvMillis("CHUNK_TARGET_MS", 1500),

		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		ClassifierModel: getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		AntiSpoof: AntiSpoofConfig{
			Enabled:   !strings.EqualFold(getEnv("ANTISPOOF_ENABLED", "true"), "false"),
			Token:     os.Getenv("HUGGINGFACE_API_TOKEN"),
			Model:     getEnv("ANTISPOOF_MODEL", "speechbrain/antispoofing-AASIST"),
			Threshold: getEnvFloat("ANTISPOOF_THRESHOLD", 0.5),
			Timeout:   getEnvMillis("ANTISPOOF_TIMEOUT_MS", 1500),
			Weight:    clamp01(getEnvFloat("ANTISPOOF_WEIGHT", 0.35)),
		},

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     os.Getenv("SUPABASE_AUDIO_BUCKET"),

		Kafka: KafkaConfig{
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			TopicSegments: getEnv("KAFKA_TOPIC_SEGMENTS", "call.segments"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "call.alerts"),
		},

		ElevenLabsKey: os.Getenv("XI_API_KEY"),
	}

	if cfg.MediaTokenSecret == "" {
		log.Warn().Msg("TWILIO_MEDIA_TOKEN_SECRET not set - every media stream will be rejected")
	}
	if cfg.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set - transcription and classification will not work")
	}
	if cfg.AntiSpoof.Enabled && cfg.AntiSpoof.Token == "" {
		log.Warn().Msg("HUGGINGFACE_API_TOKEN not set - anti-spoof detection disabled")
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		log.Warn().Msg("SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set - records will only be logged")
	}
	if cfg.ElevenLabsKey == "" {
		log.Warn().Msg("XI_API_KEY not set - voice alerts will fail")
	}

	log.Info().Str("httpAddress", cfg.HTTPAddress).Msg("config loaded")
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvMillis(key string, defaultMs int) time.Duration {
	ms, err := strconv.Atoi(os.Getenv(key))
	if err != nil || ms <= 0 {
		ms = defaultMs
	}
	return time.Duration(ms) * time.Millisecond
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
