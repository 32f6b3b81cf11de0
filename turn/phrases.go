package turn

import "github.com/cadencevoice/callpipe/session"

// Phrase tables driving mode transitions and utterance classification. The
// tables are product-tuned policy, isolated here so they can be revised (or
// replaced by a learned classifier) without touching the state machine.

// Mode-entry phrases, matched against the assistant's own prior utterance.
// The assistant decides when it is collecting a field; the caller's words
// never trigger mode entry.
var (
	spellNamePhrases = []string{
		"spell your name",
		"spell your first name",
		"spell your last name",
		"spell that for me",
		"spell it for me",
		"may i have your name",
		"can i get your name",
		"your full name",
	}

	spellEmailPhrases = []string{
		"spell your email",
		"your email address",
		"best email",
		"email address for you",
		"what's your email",
		"email to reach you",
	}

	spellPhonePhrases = []string{
		"your phone number",
		"best phone number",
		"best number to reach you",
		"number to reach you",
		"what's your phone",
		"callback number",
	}

	assistancePhrases = []string{
		"tell me more",
		"anything else i can help",
		"anything else you",
		"what are you looking for",
		"what else can i help",
		"is there anything else",
		"describe what you",
	}
)

// Confirmation and rejection sets, matched against the caller's utterance.
// Order inside each tier matters only for determinism, not priority; the
// tiers themselves (exact, then prefix, then filler-stripped) are checked in
// strictly increasing permissiveness.
var (
	confirmExact = []string{
		"yes",
		"yeah",
		"yep",
		"yup",
		"correct",
		"right",
		"perfect",
		"exactly",
		"that's correct",
		"that's right",
		"that is correct",
		"sounds good",
	}

	confirmPrefix = []string{
		"yes ",
		"yeah ",
		"yep ",
		"correct ",
		"that's correct",
		"that's right",
		"that is correct",
	}

	rejectExact = []string{
		"no",
		"nope",
		"nah",
		"wrong",
		"incorrect",
		"that's wrong",
		"that's not right",
		"that is wrong",
		"not quite",
	}

	rejectPrefix = []string{
		"no ",
		"nope ",
		"that's wrong",
		"that's not",
		"that is not",
		"not quite",
	}

	// fillerWords are stripped from the front of an utterance before the
	// third-tier match. "um yes that's right" still confirms.
	fillerWords = []string{
		"um", "uh", "er", "hmm", "oh", "so", "well", "okay", "ok", "like", "actually",
	}
)

// Assistance-completion sets: the caller signaling there is nothing more.
var (
	completionPhrases = []string{
		"nothing else",
		"no that's all",
		"that's all",
		"that's it",
		"that is all",
		"no thanks",
		"no thank you",
		"i'm good",
		"i'm all set",
		"nope that's it",
	}

	// Single-token acknowledgments also complete assistance mode.
	ackWords = []string{
		"thanks", "thank", "okay", "ok", "bye", "goodbye", "great", "perfect",
	}
)

// RecognizerHints returns phrases worth biasing the recognizer toward for
// the given collection mode. Fed to the provider as keyword hints when a
// session opens or restarts.
func RecognizerHints(kind session.SpellingKind) []string {
	switch kind {
	case session.SpellingEmail:
		return []string{"at", "dot", "com", "gmail", "yahoo", "outlook", "underscore", "dash"}
	case session.SpellingPhone:
		return []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "oh"}
	case session.SpellingName:
		return []string{"spelled", "with", "double", "capital", "hyphen"}
	default:
		return nil
	}
}
