package event

import "testing"

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ev := Event{
		Offset:      7,
		Kind:        KindStateUpdated,
		Key:         "foo",
		Revision:    3,
		Patch:       []byte(`{"a":1}`),
		TimestampMS: 1000,
	}
	line, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Offset != ev.Offset || got.Kind != ev.Kind || got.Key != ev.Key || got.Revision != ev.Revision {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ev)
	}
}

func TestEvent_IsGap(t *testing.T) {
	if (Event{Kind: KindStateUpdated}).IsGap() {
		t.Fatalf("state_updated should not be a gap")
	}
	if !(Event{Kind: KindGap}).IsGap() {
		t.Fatalf("gap kind should report IsGap")
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected decode error for malformed input")
	}
}
