package websocket

import (
	"time"

	json "github.com/goccy/go-json"

	"asr-session-client/internal/models"
)

// Client actions.
const (
	actionRunTask    = "run-task"
	actionKeepAlive  = "keep-alive"
	actionFinishTask = "finish-task"
)

// Server events.
const (
	eventTaskStarted     = "task-started"
	eventSentenceBegin   = "sentence-begin"
	eventSentenceChanged = "sentence-changed"
	eventSentenceEnd     = "sentence-end"
	eventTaskFinished    = "task-finished"
	eventTaskFailed      = "task-failed"
)

type header struct {
	Action       string `json:"action,omitempty"`
	Event        string `json:"event,omitempty"`
	TaskID       string `json:"task_id"`
	Streaming    string `json:"streaming,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type message struct {
	Header  header          `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type runTaskPayload struct {
	Parameters parameters `json:"parameters"`
}

// parameters carries the recognition config of a run-task command.
type parameters struct {
	Format                         string  `json:"format"`
	SampleRate                     int     `json:"sample_rate"`
	HotWordID                      string  `json:"hot_word_id,omitempty"`
	EnablePunctuation              bool    `json:"enable_punctuation"`
	EnableIntermediateResult       bool    `json:"enable_intermediate_result"`
	EnableInverseTextNormalization bool    `json:"enable_inverse_text_normalization"`
	SelfLearningModelID            string  `json:"self_learning_model_id,omitempty"`
	SelfLearningRatio              float64 `json:"self_learning_ratio,omitempty"`
}

type sentencePayload struct {
	Sentence struct {
		Index     int    `json:"index"`
		Text      string `json:"text"`
		BeginTime int64  `json:"begin_time"` // ms
		EndTime   int64  `json:"end_time"`   // ms
	} `json:"sentence"`
}

func command(action, taskID string, payload any) ([]byte, error) {
	msg := struct {
		Header  header `json:"header"`
		Payload any    `json:"payload,omitempty"`
	}{
		Header:  header{Action: action, TaskID: taskID, Streaming: "duplex"},
		Payload: payload,
	}
	return json.Marshal(msg)
}

func runTaskParameters(cfg Config, rc models.RecognitionConfig) parameters {
	return parameters{
		Format:                         cfg.Format,
		SampleRate:                     cfg.SampleRate,
		HotWordID:                      rc.HotWordID,
		EnablePunctuation:              rc.EnablePunctuation,
		EnableIntermediateResult:       rc.EnableIntermediateResult,
		EnableInverseTextNormalization: rc.EnableInverseTextNormalization,
		SelfLearningModelID:            rc.SelfLearningModelID,
		SelfLearningRatio:              rc.SelfLearningRatio,
	}
}

func sentenceKind(event string) (models.SentenceKind, bool) {
	switch event {
	case eventSentenceBegin:
		return models.SentenceBegin, true
	case eventSentenceChanged:
		return models.SentenceChanged, true
	case eventSentenceEnd:
		return models.SentenceEnd, true
	default:
		return 0, false
	}
}

func decodeSentence(kind models.SentenceKind, raw json.RawMessage) (models.SentenceEvent, error) {
	var p sentencePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.SentenceEvent{}, err
	}
	return models.SentenceEvent{
		Kind:      kind,
		Seq:       p.Sentence.Index,
		Text:      p.Sentence.Text,
		BeginTime: time.Duration(p.Sentence.BeginTime) * time.Millisecond,
		EndTime:   time.Duration(p.Sentence.EndTime) * time.Millisecond,
	}, nil
}
