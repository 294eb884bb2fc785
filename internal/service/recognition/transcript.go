package recognition

import (
	"sync"

	"asr-session-client/internal/models"
)

// transcriptLog is the append-only list of finalized sentences. Readers get
// a copy and never observe a partially appended entry.
type transcriptLog struct {
	mu        sync.RWMutex
	sentences []models.TranscriptSentence
}

func (t *transcriptLog) append(ev models.SentenceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentences = append(t.sentences, models.TranscriptSentence{
		Seq:       ev.Seq,
		Text:      ev.Text,
		BeginTime: ev.BeginTime,
		EndTime:   ev.EndTime,
	})
}

func (t *transcriptLog) snapshot() models.Transcript {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.TranscriptSentence, len(t.sentences))
	copy(out, t.sentences)
	return models.Transcript{Sentences: out}
}
