package flow

import "strings"

// MaxSegments is the most messages a single reply may be split into; it
// matches the platform limit on messages per reply token.
const MaxSegments = 5

// SingleMessageSegmenter sends the whole reply as one message. This is the
// default behavior.
type SingleMessageSegmenter struct{}

// Segment returns the text as a single message.
func (SingleMessageSegmenter) Segment(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

// sentenceTerminators are the rune classes a segment may end on.
const sentenceTerminators = "。！？!?；;\n"

// PunctuationSegmenter splits a long reply at sentence-ending punctuation
// into at most MaxSegments messages. Overflow beyond the limit is merged
// into the final segment.
type PunctuationSegmenter struct{}

// Segment splits text at punctuation boundaries.
func (PunctuationSegmenter) Segment(text string) []string {
	if text == "" {
		return nil
	}

	var parts []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			if p := strings.TrimSpace(current.String()); p != "" {
				parts = append(parts, p)
			}
			current.Reset()
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		parts = append(parts, p)
	}

	if len(parts) > MaxSegments {
		parts[MaxSegments-1] = strings.Join(parts[MaxSegments-1:], "")
		parts = parts[:MaxSegments]
	}
	return parts
}
