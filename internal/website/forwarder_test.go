package website_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/website"
	"go.uber.org/zap"
)

var assignment = models.Assignment{
	Channel:    "C1",
	MessageTS:  "1700000000.000100",
	AssignedTo: "U2",
	AssignedBy: "UA",
	AssignedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
}

func TestForwardAssignmentPostsEvent(t *testing.T) {
	t.Parallel()

	received := make(chan website.AssignmentEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var ev website.AssignmentEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := website.NewForwarder(srv.URL, zap.NewNop())
	f.ForwardAssignment(context.Background(), assignment)
	f.Wait()

	ev := <-received
	want := website.AssignmentEvent{
		Type:       "assignment",
		AssignedTo: "U2",
		AssignedBy: "UA",
		MessageID:  "1700000000.000100",
		Channel:    "C1",
		Timestamp:  "2024-05-01T10:00:00Z",
	}
	if ev != want {
		t.Fatalf("event = %+v, want %+v", ev, want)
	}
}

func TestForwardAssignmentSwallowsFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := website.NewForwarder(srv.URL, zap.NewNop())
	for i := 0; i < 8; i++ {
		f.ForwardAssignment(context.Background(), assignment)
		f.Wait()
	}

	// Five consecutive failures open the breaker; later events are dropped
	// without reaching the server.
	if got := hits.Load(); got != 5 {
		t.Fatalf("server hit %d times, want 5", got)
	}
}

func TestForwarderDisabledWithoutURL(t *testing.T) {
	t.Parallel()

	f := website.NewForwarder("", zap.NewNop())
	if f.Enabled() {
		t.Fatal("forwarder without URL should be disabled")
	}
	f.ForwardAssignment(context.Background(), assignment)
	f.Wait()
}

func TestForwardAssignmentDoesNotBlockCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := website.NewForwarder(srv.URL, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	f.ForwardAssignment(ctx, assignment)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("ForwardAssignment blocked for %s", elapsed)
	}

	// The triggering request finishing must not abort the delivery.
	cancel()
	close(release)
	f.Wait()
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
}
