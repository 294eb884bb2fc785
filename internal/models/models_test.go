package models

import (
	"errors"
	"math"
	"testing"
)

func TestRecognitionConfig_Normalized(t *testing.T) {
	cfg := RecognitionConfig{SelfLearningRatio: 0.7}
	if got := cfg.Normalized().SelfLearningRatio; got != 0 {
		t.Errorf("expected ratio cleared without model id, got %v", got)
	}

	cfg.SelfLearningModelID = "model-42"
	if got := cfg.Normalized().SelfLearningRatio; got != 0.7 {
		t.Errorf("expected ratio kept with model id, got %v", got)
	}
}

func TestRecognitionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RecognitionConfig
		wantErr bool
	}{
		{"no model ignores ratio", RecognitionConfig{SelfLearningRatio: 3}, false},
		{"model with ratio in range", RecognitionConfig{SelfLearningModelID: "m", SelfLearningRatio: 0.5}, false},
		{"model with ratio 1", RecognitionConfig{SelfLearningModelID: "m", SelfLearningRatio: 1}, false},
		{"model with negative ratio", RecognitionConfig{SelfLearningModelID: "m", SelfLearningRatio: -0.1}, true},
		{"model with ratio above 1", RecognitionConfig{SelfLearningModelID: "m", SelfLearningRatio: 1.5}, true},
		{"model with NaN ratio", RecognitionConfig{SelfLearningModelID: "m", SelfLearningRatio: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRatio) {
				t.Errorf("expected ErrInvalidRatio, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTranscript_Text(t *testing.T) {
	tr := Transcript{Sentences: []TranscriptSentence{
		{Seq: 1, Text: "hello there"},
		{Seq: 2, Text: "general kenobi"},
	}}

	if tr.Len() != 2 {
		t.Fatalf("expected 2 sentences, got %d", tr.Len())
	}
	if got := tr.Text(); got != "hello there\ngeneral kenobi\n" {
		t.Errorf("unexpected text %q", got)
	}
	texts := tr.Texts()
	if len(texts) != 2 || texts[0] != "hello there" || texts[1] != "general kenobi" {
		t.Errorf("unexpected texts %v", texts)
	}
}

func TestSentenceKind_String(t *testing.T) {
	tests := []struct {
		kind     SentenceKind
		expected string
	}{
		{SentenceBegin, "BEGIN"},
		{SentenceChanged, "CHANGED"},
		{SentenceEnd, "END"},
		{SentenceKind(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("SentenceKind(%d).String() = %v, want %v", tt.kind, got, tt.expected)
		}
	}
}
