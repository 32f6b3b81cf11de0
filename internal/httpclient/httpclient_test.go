package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New()
	if c.Timeout != 60*time.Second {
		t.Errorf("default timeout = %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type = %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != 16 {
		t.Errorf("MaxIdleConnsPerHost = %d", tr.MaxIdleConnsPerHost)
	}
}

func TestWithTimeoutZeroDisablesOverallBound(t *testing.T) {
	c := New(WithTimeout(0))
	if c.Timeout != 0 {
		t.Errorf("timeout = %v, want unbounded", c.Timeout)
	}
}

func TestWithTransportOverrides(t *testing.T) {
	rt := http.NewFileTransport(http.Dir("."))
	c := New(WithTransport(rt))
	if c.Transport == nil {
		t.Fatal("transport not set")
	}
	if _, ok := c.Transport.(*http.Transport); ok {
		t.Error("custom transport was replaced by the default")
	}
}
