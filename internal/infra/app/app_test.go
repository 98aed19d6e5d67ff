package app

import (
	"testing"
	"time"

	"github.com/certbridge/auth-service/internal/usecase"
)

func TestServerWriteDeadlineOutlastsDelayCap(t *testing.T) {
	srv := newHTTPServer("127.0.0.1:0", nil)

	// A capped delayed rejection sleeps usecase.MaxDelay and then still has
	// to verify the password and persist counters before responding. The
	// deadline needs real headroom beyond the sleep.
	headroom := srv.WriteTimeout - usecase.MaxDelay()
	if headroom < 10*time.Second {
		t.Fatalf("write timeout %v leaves only %v beyond the %v delay cap", srv.WriteTimeout, headroom, usecase.MaxDelay())
	}

	if srv.ReadHeaderTimeout <= 0 || srv.ReadTimeout <= 0 || srv.IdleTimeout <= 0 {
		t.Fatal("server timeouts must all be set")
	}
}
