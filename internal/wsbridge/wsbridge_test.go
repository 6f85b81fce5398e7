package wsbridge

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/eventbus"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/vector"
	"github.com/kissvdb/kissvdb/internal/wal"
)

func TestToPayload_Gap(t *testing.T) {
	ev := event.Event{Offset: 5, Kind: event.KindGap, FromOffset: 1, ToOffset: 3, Dropped: 3}
	p := toPayload(ev)
	if p.Type != event.KindGap || p.FromOffset != 1 || p.ToOffset != 3 || p.Dropped != 3 {
		t.Fatalf("unexpected gap payload: %+v", p)
	}
}

func TestToPayload_StateUpdated(t *testing.T) {
	ev := event.Event{Offset: 2, Kind: event.KindStateUpdated, Key: "a", Revision: 1}
	p := toPayload(ev)
	if p.Type != event.KindStateUpdated || p.Key != "a" || p.Revision != 1 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestParseQuery_LastEventIDTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/events/ws?since=10", nil)
	req.Header.Set("Last-Event-ID", "4")
	since, _ := parseQuery(req)
	if since != 5 {
		t.Fatalf("expected since=5 (Last-Event-ID+1), got %d", since)
	}
}

func TestParseQuery_TypesAndFilters(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/events/ws?types=state_updated,vector_upserted&key_prefix=p&collection=c", nil)
	since, filter := parseQuery(req)
	if since != 0 {
		t.Fatalf("expected default since=0, got %d", since)
	}
	if filter.KeyPrefix != "p" || filter.Collection != "c" {
		t.Fatalf("unexpected filter: %+v", filter)
	}
	if _, ok := filter.Kinds[event.KindStateUpdated]; !ok {
		t.Fatalf("expected state_updated in kinds filter")
	}
	if _, ok := filter.Kinds[event.KindVectorUpserted]; !ok {
		t.Fatalf("expected vector_upserted in kinds filter")
	}
}

func TestBridge_ServeHTTP_StreamsEvents(t *testing.T) {
	kvStore := kv.New()
	vecStore, err := vector.Open(t.TempDir())
	if err != nil {
		t.Fatalf("vector.Open: %v", err)
	}
	bus := eventbus.New(wal.OpenMemory(), kvStore, vecStore, 16)

	b := New(bus, nil)
	server := httptest.NewServer(b)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	u, err := url.Parse(wsURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, _, err := bus.PutState("k1", []byte(`"v1"`), 0, 0, nil); err != nil {
		t.Fatalf("put state: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload wsPayload
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if payload.Key != "k1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
