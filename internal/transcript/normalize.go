package transcript

// Kind is the normalized, alias-independent classification of a raw event.
//
// The provider protocol has gone through several naming revisions; every
// revision's spelling of the same logical occurrence maps to the same Kind
// here, so the aggregator's state machine never sees vendor naming churn.
type Kind int

const (
	// KindIgnored covers lifecycle noise (speech start/stop, buffer commits)
	// and any type the normalizer does not recognise.
	KindIgnored Kind = iota

	// KindUserMessageComplete is a typed user message created in one piece.
	KindUserMessageComplete

	// KindUserAudioDelta is a streamed fragment of the user's speech transcription.
	KindUserAudioDelta

	// KindUserAudioComplete is the terminal event for a user speech transcription.
	KindUserAudioComplete

	// KindUserAudioItemAdded is a user audio message that arrives already
	// transcribed as a conversation item.
	KindUserAudioItemAdded

	// KindAssistantAudioDelta is a streamed fragment of the assistant's spoken reply.
	KindAssistantAudioDelta

	// KindAssistantAudioComplete is the terminal event for an assistant spoken reply.
	KindAssistantAudioComplete

	// KindAssistantTextDelta is a streamed fragment of an assistant text reply.
	KindAssistantTextDelta

	// KindAssistantTextComplete is the terminal event for an assistant text reply.
	KindAssistantTextComplete
)

// String returns a short name for the kind, used in logs and metric attributes.
func (k Kind) String() string {
	switch k {
	case KindUserMessageComplete:
		return "user_message_complete"
	case KindUserAudioDelta:
		return "user_audio_delta"
	case KindUserAudioComplete:
		return "user_audio_complete"
	case KindUserAudioItemAdded:
		return "user_audio_item_added"
	case KindAssistantAudioDelta:
		return "assistant_audio_delta"
	case KindAssistantAudioComplete:
		return "assistant_audio_complete"
	case KindAssistantTextDelta:
		return "assistant_text_delta"
	case KindAssistantTextComplete:
		return "assistant_text_complete"
	}
	return "ignored"
}

// isDelta reports whether k appends to an in-progress entry.
func (k Kind) isDelta() bool {
	switch k {
	case KindUserAudioDelta, KindAssistantAudioDelta, KindAssistantTextDelta:
		return true
	}
	return false
}

// isComplete reports whether k finalizes the trailing partial entry when one
// is open.
func (k Kind) isComplete() bool {
	switch k {
	case KindUserAudioComplete, KindAssistantAudioComplete, KindAssistantTextComplete:
		return true
	}
	return false
}

// isCompleteAsNew reports whether k always appends a new finalized entry.
// These kinds represent messages that were never preceded by a delta stream,
// so merging them into an open partial would corrupt it.
func (k Kind) isCompleteAsNew() bool {
	return k == KindUserMessageComplete || k == KindUserAudioItemAdded
}

// normalized is the result of classifying one raw event.
type normalized struct {
	kind    Kind
	speaker Speaker
	text    string
}

// extractor pulls the payload text out of a raw event for one kind.
type extractor func(RawEvent) string

func deltaOrText(e RawEvent) string {
	if e.Delta != "" {
		return e.Delta
	}
	return e.Text
}

func transcriptOnly(e RawEvent) string { return e.Transcript }

func transcriptOrText(e RawEvent) string {
	if e.Transcript != "" {
		return e.Transcript
	}
	return e.Text
}

func textOrOutputOrTranscript(e RawEvent) string {
	switch {
	case e.Text != "":
		return e.Text
	case e.OutputText != "":
		return e.OutputText
	}
	return e.Transcript
}

// rule binds one raw type name to its kind, speaker, and payload extractor.
type rule struct {
	kind    Kind
	speaker Speaker
	extract extractor
}

// rules maps every recognised flat raw type (including all alias spellings)
// to its normalization rule. Adding support for a new protocol revision is a
// one-line entry here. Types needing item inspection are handled in normalize.
var rules = map[string]rule{
	// User speech transcription, streamed.
	"conversation.item.input_audio_transcription.delta": {KindUserAudioDelta, SpeakerUser, deltaOrText},
	"input_audio_buffer.transcription.delta":            {KindUserAudioDelta, SpeakerUser, deltaOrText},

	// User speech transcription, terminal.
	"conversation.item.input_audio_transcription.completed": {KindUserAudioComplete, SpeakerUser, transcriptOnly},
	"input_audio_buffer.transcription.completed":            {KindUserAudioComplete, SpeakerUser, transcriptOnly},

	// Assistant spoken reply transcription, streamed and terminal.
	"response.audio_transcript.delta":        {KindAssistantAudioDelta, SpeakerAssistant, deltaOrText},
	"response.output_audio_transcript.delta": {KindAssistantAudioDelta, SpeakerAssistant, deltaOrText},
	"response.audio_transcript.done":         {KindAssistantAudioComplete, SpeakerAssistant, transcriptOrText},
	"response.output_audio_transcript.done":  {KindAssistantAudioComplete, SpeakerAssistant, transcriptOrText},

	// Assistant text reply, streamed and terminal.
	"response.text.delta":        {KindAssistantTextDelta, SpeakerAssistant, deltaOrText},
	"response.output_text.delta": {KindAssistantTextDelta, SpeakerAssistant, deltaOrText},
	"response.text.done":         {KindAssistantTextComplete, SpeakerAssistant, textOrOutputOrTranscript},
	"response.output_text.done":  {KindAssistantTextComplete, SpeakerAssistant, textOrOutputOrTranscript},
}

// normalize classifies a raw event. Events with an unrecognised type, a
// recognised type whose payload extraction yields no text, or a conversation
// item of the wrong shape all normalize to KindIgnored — the aggregator must
// never create empty entries.
func normalize(ev RawEvent) normalized {
	switch ev.Type {
	case "conversation.item.create":
		// Typed user message: item.type=message, role=user, content[0].type=input_text.
		if ev.Item != nil && ev.Item.Type == "message" && ev.Item.Role == "user" {
			if part := ev.firstContent(); part.Type == "input_text" && part.Text != "" {
				return normalized{kind: KindUserMessageComplete, speaker: SpeakerUser, text: part.Text}
			}
		}
		return normalized{kind: KindIgnored}

	case "conversation.item.added":
		// User audio message arriving already transcribed.
		if ev.Item != nil && ev.Item.Type == "message" && ev.Item.Role == "user" {
			if part := ev.firstContent(); part.Type == "input_audio" && part.Transcript != "" {
				return normalized{kind: KindUserAudioItemAdded, speaker: SpeakerUser, text: part.Transcript}
			}
		}
		return normalized{kind: KindIgnored}
	}

	r, ok := rules[ev.Type]
	if !ok {
		return normalized{kind: KindIgnored}
	}
	text := r.extract(ev)
	if text == "" {
		return normalized{kind: KindIgnored}
	}
	return normalized{kind: r.kind, speaker: r.speaker, text: text}
}
