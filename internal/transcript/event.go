package transcript

import (
	"encoding/json"
	"fmt"
)

// RawEvent is a single event as emitted by the realtime provider.
//
// The type vocabulary is open and versioned: the same logical occurrence is
// emitted under different names by different protocol revisions, and payload
// field names vary by type. RawEvent therefore declares the union of all
// fields the aggregator ever reads; absent fields decode to their zero value
// and are never an error.
type RawEvent struct {
	// EventID uniquely identifies this emission. May be empty, in which case
	// duplicate delivery cannot be detected for this event.
	EventID string `json:"event_id,omitempty"`

	// Type is the provider's event type tag (e.g. "response.text.delta").
	Type string `json:"type"`

	// Delta carries an incremental text fragment on delta-type events.
	Delta string `json:"delta,omitempty"`

	// Text carries text on some delta and done variants.
	Text string `json:"text,omitempty"`

	// OutputText is an alias for Text used by newer done-event revisions.
	OutputText string `json:"output_text,omitempty"`

	// Transcript carries the full final text on audio-transcription events.
	Transcript string `json:"transcript,omitempty"`

	// Item is present on conversation.item.* events.
	Item *ConversationItem `json:"item,omitempty"`
}

// ConversationItem is the nested item object on conversation.item.* events.
type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is one element of a conversation item's content array.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ParseRawEvent decodes a single JSON event frame. Unknown fields are
// ignored; only a frame that is not a JSON object at all is an error.
func ParseRawEvent(data []byte) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RawEvent{}, fmt.Errorf("transcript: decode event: %w", err)
	}
	return ev, nil
}

// firstContent returns the first content part of the event's item, or the
// zero part when the item or its content array is absent.
func (e RawEvent) firstContent() ContentPart {
	if e.Item == nil || len(e.Item.Content) == 0 {
		return ContentPart{}
	}
	return e.Item.Content[0]
}
