package httpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	a, b := NewClient(5*time.Second), NewClient(0)
	if a.Timeout != 5*time.Second || b.Timeout != 0 {
		t.Errorf("timeouts = %v, %v", a.Timeout, b.Timeout)
	}
	if a.Transport != b.Transport {
		t.Error("clients should share one transport")
	}
}

func TestNewClientTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(20 * time.Millisecond).Get(srv.URL)
	if err == nil {
		t.Fatal("expected a timeout")
	}
}
