package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// configEnv lists every variable Load reads.
var configEnv = []string{
	"ASR_CONFIG_FILE", "SERVICE_PRINCIPAL",
	"STT_PROVIDER", "STT_ENDPOINT", "STT_API_KEY", "STT_LANGUAGE_CODE",
	"STT_SAMPLE_RATE_HZ", "STT_AUDIO_ENCODING", "STT_MODEL", "STT_START_TIMEOUT", "STT_WRITE_TIMEOUT",
	"ASR_HOT_WORD_ID", "ASR_ENABLE_PUNCTUATION", "ASR_ENABLE_INTERMEDIATE_RESULT",
	"ASR_ENABLE_ITN", "ASR_SELF_LEARNING_MODEL_ID", "ASR_SELF_LEARNING_RATIO",
	"FEED_CHUNK_SIZE", "FEED_INTERVAL", "FEED_HEADER_BYTES", "FEED_INACTIVITY_BUDGET",
	"FEED_KEEPALIVE_POLICY", "FEED_KEEPALIVE_INTERVAL", "STOP_GRACE_PERIOD",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_PARTIAL", "KAFKA_TOPIC_FINAL",
	"KAFKA_TOPIC_STATE", "KAFKA_PRINCIPAL",
	"NATS_ENABLED", "NATS_URL", "NATS_SUBJECT_PREFIX",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func mustLoad(t *testing.T) *Configuration {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := mustLoad(t)

	if cfg.Service.Principal != "svc-asr-session" {
		t.Errorf("expected default principal 'svc-asr-session', got %s", cfg.Service.Principal)
	}
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.Recognition.EnableIntermediateResult || !cfg.Recognition.EnablePunctuation {
		t.Errorf("expected punctuation and intermediate results on by default, got %+v", cfg.Recognition)
	}
	if cfg.Feeder.ChunkSize != 4800 {
		t.Errorf("expected default chunk size 4800, got %d", cfg.Feeder.ChunkSize)
	}
	if cfg.Feeder.Interval != 300*time.Millisecond {
		t.Errorf("expected default interval 300ms, got %v", cfg.Feeder.Interval)
	}
	if cfg.Feeder.InactivityBudget != 10*time.Second {
		t.Errorf("expected default inactivity budget 10s, got %v", cfg.Feeder.InactivityBudget)
	}
	if cfg.Feeder.KeepAlivePolicy != "send" {
		t.Errorf("expected default keep-alive policy 'send', got %s", cfg.Feeder.KeepAlivePolicy)
	}
	if cfg.Session.StopGracePeriod != 5*time.Second {
		t.Errorf("expected default grace period 5s, got %v", cfg.Session.StopGracePeriod)
	}
	if cfg.Kafka.Enabled || cfg.NATS.Enabled {
		t.Error("brokers should be disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsAddr != "" {
		t.Errorf("expected metrics server off by default, got %q", cfg.Observability.MetricsAddr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STT_PROVIDER", "websocket")
	t.Setenv("STT_ENDPOINT", "wss://asr.example.com/ws")
	t.Setenv("STT_SAMPLE_RATE_HZ", "16000")
	t.Setenv("STT_WRITE_TIMEOUT", "3s")
	t.Setenv("ASR_HOT_WORD_ID", "1024")
	t.Setenv("ASR_ENABLE_INTERMEDIATE_RESULT", "false")
	t.Setenv("ASR_SELF_LEARNING_MODEL_ID", "sl-7")
	t.Setenv("ASR_SELF_LEARNING_RATIO", "0.4")
	t.Setenv("FEED_CHUNK_SIZE", "3200")
	t.Setenv("FEED_INTERVAL", "200ms")
	t.Setenv("FEED_HEADER_BYTES", "44")
	t.Setenv("FEED_KEEPALIVE_POLICY", "none")
	t.Setenv("STOP_GRACE_PERIOD", "2s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := mustLoad(t)

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.STT.Provider != "websocket" || cfg.STT.Endpoint != "wss://asr.example.com/ws" {
		t.Errorf("unexpected STT config %+v", cfg.STT)
	}
	if cfg.STT.WriteTimeout != 3*time.Second {
		t.Errorf("expected write timeout 3s, got %v", cfg.STT.WriteTimeout)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.Recognition.HotWordID != "1024" || cfg.Recognition.EnableIntermediateResult {
		t.Errorf("unexpected recognition config %+v", cfg.Recognition)
	}
	if cfg.Recognition.SelfLearningModelID != "sl-7" || cfg.Recognition.SelfLearningRatio != 0.4 {
		t.Errorf("unexpected self-learning config %+v", cfg.Recognition)
	}
	if cfg.Feeder.ChunkSize != 3200 || cfg.Feeder.Interval != 200*time.Millisecond || cfg.Feeder.HeaderBytes != 44 {
		t.Errorf("unexpected feeder config %+v", cfg.Feeder)
	}
	if cfg.Feeder.KeepAlivePolicy != "none" {
		t.Errorf("expected keep-alive policy 'none', got %s", cfg.Feeder.KeepAlivePolicy)
	}
	if cfg.Session.StopGracePeriod != 2*time.Second {
		t.Errorf("expected grace period 2s, got %v", cfg.Session.StopGracePeriod)
	}
	if !cfg.Kafka.Enabled || !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("unexpected Kafka config %+v", cfg.Kafka)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("ASR_ENABLE_PUNCTUATION", "invalid")
	t.Setenv("ASR_SELF_LEARNING_RATIO", "lots")
	t.Setenv("FEED_INTERVAL", "soon")
	t.Setenv("FEED_HEADER_BYTES", "-x")

	cfg := mustLoad(t)

	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.Recognition.EnablePunctuation {
		t.Error("expected default punctuation on invalid input")
	}
	if cfg.Recognition.SelfLearningRatio != 0 {
		t.Errorf("expected default ratio on invalid input, got %v", cfg.Recognition.SelfLearningRatio)
	}
	if cfg.Feeder.Interval != 300*time.Millisecond {
		t.Errorf("expected default interval on invalid input, got %v", cfg.Feeder.Interval)
	}
	if cfg.Feeder.HeaderBytes != 0 {
		t.Errorf("expected default header bytes on invalid input, got %d", cfg.Feeder.HeaderBytes)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg := mustLoad(t)

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "asr.yaml")
	content := `
stt:
  provider: google
  languageCode: es-ES
recognition:
  hotWordId: "77"
  enablePunctuation: false
feeder:
  interval: 100ms
  keepAliveInterval: 2s
kafka:
  brokers: [a:9092, b:9092]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ASR_CONFIG_FILE", path)
	t.Setenv("STT_LANGUAGE_CODE", "fr-FR") // env wins over the file

	cfg := mustLoad(t)

	if cfg.STT.Provider != "google" {
		t.Errorf("expected provider from file, got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "fr-FR" {
		t.Errorf("expected env override, got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected defaults for fields absent from the file, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.Recognition.HotWordID != "77" || cfg.Recognition.EnablePunctuation {
		t.Errorf("unexpected recognition config %+v", cfg.Recognition)
	}
	if !cfg.Recognition.EnableIntermediateResult {
		t.Error("fields absent from the file should keep their defaults")
	}
	if cfg.Feeder.Interval != 100*time.Millisecond || cfg.Feeder.KeepAliveInterval != 2*time.Second {
		t.Errorf("unexpected feeder config %+v", cfg.Feeder)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("ASR_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("feeder: [not, a, map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ASR_CONFIG_FILE", bad)
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
		{",", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
