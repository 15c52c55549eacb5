package transcript

import "time"

// Speaker identifies which side of the conversation produced an entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// IsValid reports whether s is a recognised speaker.
func (s Speaker) IsValid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// Label returns the human-readable speaker name used in exports ("User" or
// "Assistant").
func (s Speaker) Label() string {
	switch s {
	case SpeakerUser:
		return "User"
	case SpeakerAssistant:
		return "Assistant"
	}
	return string(s)
}

// Entry is a single utterance in the transcript.
//
// While Partial is true the entry is still open: delta events append to
// Message in place, keeping the original ID and Timestamp. Once a terminal
// event finalizes the entry, Partial becomes false and the entry is never
// mutated again.
type Entry struct {
	// ID is derived from the event that created the entry, or a generated
	// fallback when that event carried no id.
	ID string `json:"id"`

	// Speaker attributes the utterance to the user or the assistant.
	Speaker Speaker `json:"speaker"`

	// Message is the utterance text. Grows by append while Partial; replaced
	// wholesale on finalization.
	Message string `json:"message"`

	// Timestamp is the capture time at entry creation. It does not change
	// when deltas are appended.
	Timestamp time.Time `json:"timestamp"`

	// Partial reports whether the entry may still receive appended deltas.
	Partial bool `json:"is_partial"`
}
