package event

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

func TestDecodeMapTransition(t *testing.T) {
	guid := uuid.MustParse("5f0c6a3e-2a51-4f71-9d53-1b3c8e0f6a10")
	ev, err := Decode([]byte(`{"type":"map_transition","at":"2024-05-01T12:00:00Z","map_type":"HellGate","map_guid":"` + guid.String() + `","map_index":"HG-1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	mt, ok := ev.(MapTransition)
	if !ok {
		t.Fatalf("expected MapTransition, got %T", ev)
	}
	if mt.MapType != model.MapHellGate || mt.MapGuid == nil || *mt.MapGuid != guid || mt.MapIndex != "HG-1" {
		t.Fatalf("unexpected event: %+v", mt)
	}
	if !mt.Time().Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", mt.Time())
	}
}

func TestDecodeNullGuid(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"map_transition","map_guid":null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	mt := ev.(MapTransition)
	if mt.MapGuid != nil {
		t.Fatalf("expected nil guid")
	}
	if mt.MapType != model.MapUnknown {
		t.Fatalf("expected unknown map type, got %s", mt.MapType)
	}
	if !mt.Time().IsZero() {
		t.Fatalf("expected zero time")
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := ValueGained{Amount: 120, Kind: model.ValueFactionCoins, CityFaction: model.CityLymhurst}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"type":"value_gained"`) {
		t.Fatalf("missing type tag: %s", data)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := out.(ValueGained); got.Amount != 120 || got.Kind != model.ValueFactionCoins || got.CityFaction != model.CityLymhurst {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestReaderSkipsCommentsAndReportsLine(t *testing.T) {
	input := strings.Join([]string{
		"# session log",
		`{"type":"chest_opened","id":4}`,
		"",
		`{"type":"bogus"}`,
		`{"type":"player_died","victim_name":"me","killer_name":"boss"}`,
	}, "\n")
	r := NewReader(strings.NewReader(input))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if ev.(ChestOpened).ID != 4 {
		t.Fatalf("unexpected first event: %+v", ev)
	}

	_, err = r.Next()
	var le *LineError
	if !errors.As(err, &le) || le.Line != 4 {
		t.Fatalf("expected line error on line 4, got %v", err)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("third event: %v", err)
	}
	if ev.(PlayerDied).KillerName != "boss" {
		t.Fatalf("unexpected third event: %+v", ev)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
