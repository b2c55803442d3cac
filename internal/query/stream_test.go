package query

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		events := []string{
			`{"type":"block","blockchain_id":"bitcoin-mainnet","height":700001}`,
			`{"type":"transaction","blockchain_id":"bitcoin-mainnet","transaction_id":"tx-9"}`,
			`not json`,
			`{"type":"balance","currency_id":"bitcoin-mainnet:btc","addresses":["addr-1"]}`,
		}
		for _, ev := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ev)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ch := make(chan StreamEvent, 8)
	stream := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), func(ev StreamEvent) {
		ch <- ev
	})
	if err := stream.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer stream.Close()

	var got []StreamEvent
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d events, want 3", len(got))
		}
	}

	if got[0].Type != "block" || got[0].Height != 700_001 {
		t.Errorf("event 0 = %+v, want block 700001", got[0])
	}
	if got[1].Type != "transaction" || got[1].TxID != "tx-9" {
		t.Errorf("event 1 = %+v, want transaction tx-9", got[1])
	}
	// The malformed message is dropped, not delivered.
	if got[2].Type != "balance" || len(got[2].Addresses) != 1 {
		t.Errorf("event 2 = %+v, want balance for one address", got[2])
	}
}

func TestStreamCloseTwice(t *testing.T) {
	stream := NewStream("ws://127.0.0.1:1/feed", func(StreamEvent) {})
	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
