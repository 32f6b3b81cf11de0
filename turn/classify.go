package turn

import (
	"strings"

	"github.com/cadencevoice/callpipe/session"
)

// Mode is the machine's conversational state.
type Mode int

const (
	ModeDirect Mode = iota
	ModeSpelling
	ModeAssistance
)

func (m Mode) String() string {
	switch m {
	case ModeSpelling:
		return "spelling"
	case ModeAssistance:
		return "assistance"
	default:
		return "direct"
	}
}

// Classification labels a caller utterance relative to a pending
// confirmation question.
type Classification int

const (
	ClassNone Classification = iota
	ClassConfirmation
	ClassRejection
)

func (c Classification) String() string {
	switch c {
	case ClassConfirmation:
		return "confirmation"
	case ClassRejection:
		return "rejection"
	default:
		return "none"
	}
}

// ClassifyIntent inspects the assistant's prior utterance and decides which
// mode the next caller input should be handled in. Spelling kinds take
// priority over assistance since a field request is the more specific ask.
func ClassifyIntent(priorAIUtterance string) (Mode, session.SpellingKind) {
	text := normalize(priorAIUtterance)
	switch {
	case containsAny(text, spellNamePhrases):
		return ModeSpelling, session.SpellingName
	case containsAny(text, spellEmailPhrases):
		return ModeSpelling, session.SpellingEmail
	case containsAny(text, spellPhonePhrases):
		return ModeSpelling, session.SpellingPhone
	case containsAny(text, assistancePhrases):
		return ModeAssistance, session.SpellingUnspecified
	default:
		return ModeDirect, session.SpellingUnspecified
	}
}

// Classify labels a caller utterance as confirmation, rejection, or neither.
// Tiers run in order of increasing permissiveness: exact match, then prefix
// match, then the same two applied after leading fillers are stripped. An
// earlier tier's answer is never revisited by a later one.
func Classify(utterance string) Classification {
	text := normalize(utterance)
	if text == "" {
		return ClassNone
	}

	if c := classifyExact(text); c != ClassNone {
		return c
	}
	if c := classifyPrefix(text); c != ClassNone {
		return c
	}

	stripped := stripFillers(text)
	if stripped == text || stripped == "" {
		return ClassNone
	}
	if c := classifyExact(stripped); c != ClassNone {
		return c
	}
	return classifyPrefix(stripped)
}

// IsCompletion reports whether a caller utterance ends assistance mode:
// either a known completion phrase or a bare one-word acknowledgment.
func IsCompletion(utterance string) bool {
	text := normalize(utterance)
	if text == "" {
		return false
	}
	for _, p := range completionPhrases {
		if text == p || strings.HasPrefix(text, p+" ") {
			return true
		}
	}
	if !strings.Contains(text, " ") {
		for _, w := range ackWords {
			if text == w {
				return true
			}
		}
	}
	return false
}

func classifyExact(text string) Classification {
	for _, p := range confirmExact {
		if text == p {
			return ClassConfirmation
		}
	}
	for _, p := range rejectExact {
		if text == p {
			return ClassRejection
		}
	}
	return ClassNone
}

func classifyPrefix(text string) Classification {
	for _, p := range confirmPrefix {
		if strings.HasPrefix(text, p) {
			return ClassConfirmation
		}
	}
	for _, p := range rejectPrefix {
		if strings.HasPrefix(text, p) {
			return ClassRejection
		}
	}
	return ClassNone
}

// stripFillers removes leading filler words. "um yeah so" becomes "yeah so"
// after one pass; repeated fillers are all consumed.
func stripFillers(text string) string {
	words := strings.Fields(text)
	i := 0
outer:
	for i < len(words) {
		for _, f := range fillerWords {
			if words[i] == f {
				i++
				continue outer
			}
		}
		break
	}
	return strings.Join(words[i:], " ")
}

// normalize lowercases and strips terminal punctuation so phrase tables stay
// punctuation-free.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.NewReplacer(".", "", ",", "", "!", "", "?", "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
