// Package config loads process configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"asr-session-client/internal/models"
)

// Configuration is the complete process configuration.
type Configuration struct {
	Service       ServiceConfig            `yaml:"service"`
	STT           STTConfig                `yaml:"stt"`
	Recognition   models.RecognitionConfig `yaml:"recognition"`
	Feeder        FeederConfig             `yaml:"feeder"`
	Session       SessionConfig            `yaml:"session"`
	Kafka         KafkaConfig              `yaml:"kafka"`
	NATS          NATSConfig               `yaml:"nats"`
	Observability ObservabilityConfig      `yaml:"observability"`
}

// ServiceConfig identifies this client to brokers.
type ServiceConfig struct {
	Principal string `yaml:"principal"`
}

// STTConfig selects and configures the recognition transport.
type STTConfig struct {
	Provider      string        `yaml:"provider"` // mock, websocket or google
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"apiKey"`
	LanguageCode  string        `yaml:"languageCode"`
	SampleRateHz  int           `yaml:"sampleRateHz"`
	AudioEncoding string        `yaml:"audioEncoding"`
	Model         string        `yaml:"model"`
	StartTimeout  time.Duration `yaml:"startTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"` // websocket per-write deadline
}

// FeederConfig controls audio chunking, pacing and inactivity handling.
type FeederConfig struct {
	ChunkSize         int           `yaml:"chunkSize"`
	Interval          time.Duration `yaml:"interval"`
	HeaderBytes       int64         `yaml:"headerBytes"`
	InactivityBudget  time.Duration `yaml:"inactivityBudget"`
	KeepAlivePolicy   string        `yaml:"keepAlivePolicy"` // send or none
	KeepAliveInterval time.Duration `yaml:"keepAliveInterval"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	StopGracePeriod time.Duration `yaml:"stopGracePeriod"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	TopicState   string   `yaml:"topicState"`
	Principal    string   `yaml:"principal"`
}

// NATSConfig holds NATS publisher settings.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`   // json or console
	MetricsAddr string `yaml:"metricsAddr"` // empty disables the metrics server
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "svc-asr-session",
		},
		STT: STTConfig{
			Provider:      "mock",
			LanguageCode:  "en-US",
			SampleRateHz:  8000,
			AudioEncoding: "LINEAR16",
			StartTimeout:  10 * time.Second,
			WriteTimeout:  10 * time.Second,
		},
		Recognition: models.DefaultRecognitionConfig(),
		Feeder: FeederConfig{
			ChunkSize:         4800,
			Interval:          300 * time.Millisecond,
			InactivityBudget:  10 * time.Second,
			KeepAlivePolicy:   "send",
			KeepAliveInterval: 5 * time.Second,
		},
		Session: SessionConfig{
			StopGracePeriod: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			TopicPartial: "interaction.transcript.partial",
			TopicFinal:   "interaction.transcript.final",
			TopicState:   "asr.session.state",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "asr.session",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// ASR_CONFIG_FILE if set, then environment overrides.
func Load() (*Configuration, error) {
	cfg := Default()

	if path := os.Getenv("ASR_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Configuration) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Configuration) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.Endpoint = envOrDefault("STT_ENDPOINT", c.STT.Endpoint)
	c.STT.APIKey = envOrDefault("STT_API_KEY", c.STT.APIKey)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)
	c.STT.Model = envOrDefault("STT_MODEL", c.STT.Model)
	c.STT.StartTimeout = envOrDefaultDuration("STT_START_TIMEOUT", c.STT.StartTimeout)
	c.STT.WriteTimeout = envOrDefaultDuration("STT_WRITE_TIMEOUT", c.STT.WriteTimeout)

	r := &c.Recognition
	r.HotWordID = envOrDefault("ASR_HOT_WORD_ID", r.HotWordID)
	r.EnablePunctuation = envOrDefaultBool("ASR_ENABLE_PUNCTUATION", r.EnablePunctuation)
	r.EnableIntermediateResult = envOrDefaultBool("ASR_ENABLE_INTERMEDIATE_RESULT", r.EnableIntermediateResult)
	r.EnableInverseTextNormalization = envOrDefaultBool("ASR_ENABLE_ITN", r.EnableInverseTextNormalization)
	r.SelfLearningModelID = envOrDefault("ASR_SELF_LEARNING_MODEL_ID", r.SelfLearningModelID)
	r.SelfLearningRatio = envOrDefaultFloat("ASR_SELF_LEARNING_RATIO", r.SelfLearningRatio)

	f := &c.Feeder
	f.ChunkSize = envOrDefaultInt("FEED_CHUNK_SIZE", f.ChunkSize)
	f.Interval = envOrDefaultDuration("FEED_INTERVAL", f.Interval)
	f.HeaderBytes = envOrDefaultInt64("FEED_HEADER_BYTES", f.HeaderBytes)
	f.InactivityBudget = envOrDefaultDuration("FEED_INACTIVITY_BUDGET", f.InactivityBudget)
	f.KeepAlivePolicy = envOrDefault("FEED_KEEPALIVE_POLICY", f.KeepAlivePolicy)
	f.KeepAliveInterval = envOrDefaultDuration("FEED_KEEPALIVE_INTERVAL", f.KeepAliveInterval)

	c.Session.StopGracePeriod = envOrDefaultDuration("STOP_GRACE_PERIOD", c.Session.StopGracePeriod)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", c.Kafka.TopicPartial)
	c.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", c.Kafka.TopicFinal)
	c.Kafka.TopicState = envOrDefault("KAFKA_TOPIC_STATE", c.Kafka.TopicState)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.NATS.Enabled = envOrDefaultBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = envOrDefault("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = envOrDefault("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", c.Observability.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
