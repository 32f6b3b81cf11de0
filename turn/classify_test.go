package turn

import (
	"testing"

	"github.com/cadencevoice/callpipe/session"
)

func TestClassifyIntentModeEntry(t *testing.T) {
	cases := []struct {
		prior string
		mode  Mode
		kind  session.SpellingKind
	}{
		{"Could you spell your name for me?", ModeSpelling, session.SpellingName},
		{"What's the best email to reach you at? Please spell your email.", ModeSpelling, session.SpellingEmail},
		{"And your phone number?", ModeSpelling, session.SpellingPhone},
		{"Great! Is there anything else I can help you with today?", ModeAssistance, session.SpellingUnspecified},
		{"The open house is on Saturday at two.", ModeDirect, session.SpellingUnspecified},
	}
	for _, tc := range cases {
		mode, kind := ClassifyIntent(tc.prior)
		if mode != tc.mode || kind != tc.kind {
			t.Errorf("ClassifyIntent(%q) = %v/%v, want %v/%v", tc.prior, mode, kind, tc.mode, tc.kind)
		}
	}
}

func TestClassifyIntentPrefersFieldOverAssistance(t *testing.T) {
	// An utterance matching both a field request and an elaboration phrase
	// goes to the more specific field mode.
	mode, kind := ClassifyIntent("Is there anything else? Also, can I get your name?")
	if mode != ModeSpelling || kind != session.SpellingName {
		t.Errorf("got %v/%v", mode, kind)
	}
}

func TestClassifyTiers(t *testing.T) {
	cases := []struct {
		in   string
		want Classification
	}{
		// exact
		{"yes", ClassConfirmation},
		{"That's correct.", ClassConfirmation},
		{"no", ClassRejection},
		{"Nope", ClassRejection},
		// prefix
		{"yes that's the one", ClassConfirmation},
		{"no it's with a K", ClassRejection},
		// filler-stripped
		{"um yes", ClassConfirmation},
		{"uh well no that's wrong", ClassRejection},
		{"okay so yeah that works", ClassConfirmation},
		// neither
		{"my name is Jordan", ClassNone},
		{"", ClassNone},
		{"um uh", ClassNone},
	}
	for _, tc := range cases {
		if got := Classify(tc.in); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClassifyExactBeatsPrefix(t *testing.T) {
	// "no" must resolve in the exact tier; the prefix tier never runs for it.
	if got := Classify("no"); got != ClassRejection {
		t.Errorf("got %v", got)
	}
	// A word that merely starts with a confirmation word is not a match.
	if got := Classify("yesterday was fine"); got != ClassNone {
		t.Errorf("Classify(yesterday...) = %v, want none", got)
	}
}

func TestIsCompletion(t *testing.T) {
	for _, yes := range []string{"nothing else", "no that's all", "That's it!", "thanks", "okay"} {
		if !IsCompletion(yes) {
			t.Errorf("IsCompletion(%q) = false", yes)
		}
	}
	for _, no := range []string{"I'd also like to see the garden", "thanks for asking about the garage", ""} {
		if IsCompletion(no) {
			t.Errorf("IsCompletion(%q) = true", no)
		}
	}
}
