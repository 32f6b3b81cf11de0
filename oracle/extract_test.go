package oracle

import "testing"

func TestParseReplyStripsExtractBlock(t *testing.T) {
	raw := `Got it, thanks! <data_extract>{"email": "john at gmail dot com", "phone": "555-123-4567"}</data_extract> Is there anything else?`
	reply := parseReply(raw)

	if reply.Text != "Got it, thanks! Is there anything else?" {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.Data["email"] != "john@gmail.com" {
		t.Errorf("email = %q", reply.Data["email"])
	}
	if reply.Data["phone"] != "5551234567" {
		t.Errorf("phone = %q", reply.Data["phone"])
	}
	if reply.EndCall {
		t.Error("EndCall should be false")
	}
}

func TestParseReplyEndCallMarker(t *testing.T) {
	reply := parseReply("Thanks for calling, goodbye! <end_call/>")
	if !reply.EndCall {
		t.Fatal("EndCall not detected")
	}
	if reply.Text != "Thanks for calling, goodbye!" {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestParseReplyMalformedExtractBlockIsDropped(t *testing.T) {
	reply := parseReply(`Sure thing. <data_extract>{not json}</data_extract>`)
	if reply.Data != nil {
		t.Errorf("Data = %v, want nil", reply.Data)
	}
	if reply.Text != "Sure thing." {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestParseReplyCombinesSplitNames(t *testing.T) {
	reply := parseReply(`Noted. <data_extract>{"first_name": "Jordan", "last_name": "Avery"}</data_extract>`)
	if reply.Data["name"] != "Jordan Avery" {
		t.Errorf("name = %q", reply.Data["name"])
	}
	if _, ok := reply.Data["first_name"]; ok {
		t.Error("first_name should be collapsed into name")
	}
}

func TestCleanEmailSpokenForms(t *testing.T) {
	cases := map[string]string{
		"John At Gmail Dot Com":            "john@gmail.com",
		"j o h n at g m a i l dot com":     "john@gmail.com",
		"jane underscore doe at work dot org": "jane_doe@work.org",
		"already@fine.com":                 "already@fine.com",
	}
	for in, want := range cases {
		if got := cleanEmail(in); got != want {
			t.Errorf("cleanEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanPhoneKeepsDigitsAndLeadingPlus(t *testing.T) {
	if got := cleanPhone("+1 (555) 123-4567"); got != "+15551234567" {
		t.Errorf("got %q", got)
	}
	if got := cleanPhone("five five five 1 2 3 4"); got != "5551234" {
		t.Errorf("got %q", got)
	}
}

func TestFallbackRotates(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < len(fallbackLines); i++ {
		seen[Fallback().Text] = true
	}
	if len(seen) != len(fallbackLines) {
		t.Errorf("rotation covered %d of %d lines", len(seen), len(fallbackLines))
	}
	if a, b := Fallback().Text, Fallback().Text; a == b {
		t.Error("consecutive fallbacks repeated the same line")
	}
}
