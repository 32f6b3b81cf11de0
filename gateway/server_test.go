package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cadencevoice/callpipe/postcall"
	"github.com/cadencevoice/callpipe/session"
)

func newTestServer(t *testing.T) (*Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry()
	srv := New(Config{
		Registry:  registry,
		Postcall:  postcall.NewRunner(registry, nil, nil),
		StreamURL: "wss://calls.example.com/media",
	})
	return srv, registry
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestVoiceWebhookReturnsStreamTwiML(t *testing.T) {
	srv, _ := newTestServer(t)

	form := url.Values{"CallSid": {"CA100"}, "From": {"+15550001111"}}
	w := postForm(srv.Handler(), "/voice?direction=outbound&lead_id=lead-7&lead_name=Ana", form)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/xml") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		"<Connect>",
		"wss://calls.example.com/media",
		`name="direction"`,
		`value="outbound"`,
		`name="lead_id"`,
		`value="lead-7"`,
		`name="phone"`,
		`value="+15550001111"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("twiml missing %q:\n%s", want, body)
		}
	}
}

func TestVoiceWebhookDefaultsInbound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postForm(srv.Handler(), "/voice", url.Values{"CallSid": {"CA101"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `value="inbound"`) {
		t.Errorf("expected inbound default:\n%s", w.Body.String())
	}
}

func TestCallStatusCompletedReleasesSession(t *testing.T) {
	srv, registry := newTestServer(t)

	st := registry.Get("CA200")
	st.AppendTranscript(session.SpeakerLead, "hello")
	st.AppendTranscript(session.SpeakerAI, "hi there")

	form := url.Values{
		"CallSid":      {"CA200"},
		"CallStatus":   {"completed"},
		"CallDuration": {"42"},
	}
	w := postForm(srv.Handler(), "/call-status", form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if registry.Len() != 0 {
		t.Errorf("session not released, registry len = %d", registry.Len())
	}
}

func TestCallStatusInterimIgnored(t *testing.T) {
	srv, registry := newTestServer(t)

	registry.Get("CA201")
	form := url.Values{"CallSid": {"CA201"}, "CallStatus": {"in-progress"}}
	w := postForm(srv.Handler(), "/call-status", form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if registry.Len() != 1 {
		t.Errorf("interim status must not release, registry len = %d", registry.Len())
	}
}

func TestCallStatusMissingCallSid(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postForm(srv.Handler(), "/call-status", url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSignatureValidationRejectsUnsigned(t *testing.T) {
	registry := session.NewRegistry()
	srv := New(Config{
		Registry:        registry,
		Postcall:        postcall.NewRunner(registry, nil, nil),
		StreamURL:       "wss://calls.example.com/media",
		TwilioAuthToken: "secret",
		PublicHost:      "calls.example.com",
	})

	w := postForm(srv.Handler(), "/voice", url.Values{"CallSid": {"CA300"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHealthReportsActiveCalls(t *testing.T) {
	srv, registry := newTestServer(t)
	registry.Get("CA400")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"active_calls":1`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpointExposesCallCounters(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.metrics.CallStarted()
	srv.metrics.TurnDispatched()
	srv.metrics.BargeIn()
	srv.metrics.CallEnded(30 * time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"callpipe_calls_total 1",
		"callpipe_turns_total 1",
		"callpipe_barge_ins_total 1",
		"callpipe_active_calls 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
