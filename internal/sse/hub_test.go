package sse

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spesedonut/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func recvMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for SSE message")
	}
	return Message{}
}

func TestHubBroadcastOrderingAndClose(t *testing.T) {
	var counts []int
	hub := NewHub(testLogger(), WithClientCounter(func(n int) { counts = append(counts, n) }))

	a := hub.NewClient()
	b := hub.NewClient()
	if hub.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", hub.Count())
	}

	hub.Broadcast(Message{Event: EventFrame, ID: "1"})
	hub.Broadcast(Message{Event: EventFrame, ID: "2"})

	for _, c := range []*Client{a, b} {
		if got := recvMessage(t, c.Outbound); got.ID != "1" {
			t.Fatalf("first message id = %s, want 1", got.ID)
		}
		if got := recvMessage(t, c.Outbound); got.ID != "2" {
			t.Fatalf("second message id = %s, want 2", got.ID)
		}
	}

	hub.CloseClient(a)
	hub.CloseClient(a)
	if _, ok := <-a.Outbound; ok {
		t.Fatal("outbound should be closed after CloseClient")
	}
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}

	hub.Close()
	if hub.Count() != 0 {
		t.Fatalf("Count() after Close = %d, want 0", hub.Count())
	}
	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("counter calls = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counter calls = %v, want %v", counts, want)
		}
	}
}

func TestHubBroadcastKeepsNewestWhenFull(t *testing.T) {
	hub := NewHub(testLogger(), WithBuffer(2))
	c := hub.NewClient()
	defer hub.CloseClient(c)

	for _, id := range []string{"1", "2", "3"} {
		hub.Broadcast(Message{Event: EventFrame, ID: id})
	}

	if got := recvMessage(t, c.Outbound); got.ID != "2" {
		t.Fatalf("first queued id = %s, want 2", got.ID)
	}
	if got := recvMessage(t, c.Outbound); got.ID != "3" {
		t.Fatalf("second queued id = %s, want 3", got.ID)
	}
}

func TestHubServeHTTP(t *testing.T) {
	hub := NewHub(testLogger(), WithHeartbeat(time.Hour))
	connected := make(chan *Client, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := hub.NewClient()
		defer hub.CloseClient(c)
		connected <- c
		hub.ServeHTTP(w, r, c, Message{Event: EventFrame, ID: "0", Data: map[string]int{"version": 0}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	<-connected
	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	first := readEvent()
	if !strings.Contains(first, "id: 0\n") || !strings.Contains(first, `data: {"version":0}`) {
		t.Fatalf("unexpected initial event %q", first)
	}

	hub.Broadcast(Message{Event: EventFrame, ID: "1", Data: map[string]int{"version": 1}})
	second := readEvent()
	if !strings.Contains(second, "event: frame\n") || !strings.Contains(second, `"version":1`) {
		t.Fatalf("unexpected broadcast event %q", second)
	}
}
