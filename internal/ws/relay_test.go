package ws

import (
	"testing"
	"time"

	"match_coordinator/internal/domain"
)

func drainClient() *Client {
	return &Client{Send: make(chan []byte, 16)}
}

func TestRelayForwardDirect(t *testing.T) {
	r := NewRelay(4, time.Second)
	c := drainClient()

	r.Forward(c, domain.RoleP2, []byte("offer"))

	select {
	case got := <-c.Send:
		if string(got) != "offer" {
			t.Fatalf("forwarded %q; want offer", got)
		}
	default:
		t.Fatal("frame was not delivered")
	}
}

func TestRelayBuffersUntilConnect(t *testing.T) {
	r := NewRelay(4, time.Second)

	r.Forward(nil, domain.RoleP2, []byte("one"))
	r.Forward(nil, domain.RoleP2, []byte("two"))

	c := drainClient()
	r.Flush(c, domain.RoleP2)

	for _, want := range []string{"one", "two"} {
		select {
		case got := <-c.Send:
			if string(got) != want {
				t.Fatalf("flushed %q; want %q", got, want)
			}
		default:
			t.Fatalf("missing buffered frame %q", want)
		}
	}
}

func TestRelayBufferBounded(t *testing.T) {
	r := NewRelay(2, time.Second)

	r.Forward(nil, domain.RoleP1, []byte("a"))
	r.Forward(nil, domain.RoleP1, []byte("b"))
	r.Forward(nil, domain.RoleP1, []byte("c")) // over the limit, dropped

	c := drainClient()
	r.Flush(c, domain.RoleP1)

	got := 0
	for {
		select {
		case <-c.Send:
			got++
		default:
			if got != 2 {
				t.Fatalf("flushed %d frames; want 2", got)
			}
			return
		}
	}
}

func TestRelayDropsExpiredFrames(t *testing.T) {
	r := NewRelay(4, 20*time.Millisecond)

	r.Forward(nil, domain.RoleP1, []byte("stale"))
	time.Sleep(40 * time.Millisecond)

	c := drainClient()
	r.Flush(c, domain.RoleP1)

	select {
	case got := <-c.Send:
		t.Fatalf("expired frame %q was delivered", got)
	default:
	}
}
