// Package event defines the typed domain events fed to the tracker and their JSON form.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// ErrUnknownType is returned for an envelope whose type is not recognized.
var ErrUnknownType = errors.New("unknown event type")

// Type names an event on the wire.
type Type string

// Event types.
const (
	TypeMapTransition Type = "map_transition"
	TypeEventObject   Type = "event_object"
	TypeChestOpened   Type = "chest_opened"
	TypeValueGained   Type = "value_gained"
	TypePlayerDied    Type = "player_died"
	TypeRemoveRuns    Type = "remove_runs"
)

// Event is any inbound domain event.
type Event interface {
	Type() Type
	// Time is when the event happened; zero means "now".
	Time() time.Time
}

// Stamp carries the optional event time.
type Stamp struct {
	At time.Time `json:"at,omitempty"`
}

// Time implements Event.
func (s Stamp) Time() time.Time { return s.At }

// MapTransition reports that the player entered a map.
type MapTransition struct {
	Stamp
	MapType  model.MapType `json:"map_type"`
	MapGuid  *uuid.UUID    `json:"map_guid"`
	MapIndex string        `json:"map_index"`
}

// EventObjectDiscovered reports a chest or shrine seen in the current map.
type EventObjectDiscovered struct {
	Stamp
	ID         int    `json:"id"`
	UniqueName string `json:"unique_name"`
}

// ChestOpened reports that an event object was opened.
type ChestOpened struct {
	Stamp
	ID int `json:"id"`
}

// ValueGained reports a reward gain.
type ValueGained struct {
	Stamp
	Amount      float64           `json:"amount"`
	Kind        model.ValueKind   `json:"kind"`
	CityFaction model.CityFaction `json:"city_faction,omitempty"`
}

// PlayerDied reports a player death.
type PlayerDied struct {
	Stamp
	VictimName string `json:"victim_name"`
	KillerName string `json:"killer_name"`
}

// RemoveRuns asks for runs to be removed by hash.
type RemoveRuns struct {
	Stamp
	Hashes []string `json:"hashes"`
}

// Type implements Event.
func (MapTransition) Type() Type { return TypeMapTransition }

// Type implements Event.
func (EventObjectDiscovered) Type() Type { return TypeEventObject }

// Type implements Event.
func (ChestOpened) Type() Type { return TypeChestOpened }

// Type implements Event.
func (ValueGained) Type() Type { return TypeValueGained }

// Type implements Event.
func (PlayerDied) Type() Type { return TypePlayerDied }

// Type implements Event.
func (RemoveRuns) Type() Type { return TypeRemoveRuns }

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses one JSON event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	var ev Event
	var err error
	switch env.Type {
	case TypeMapTransition:
		var e MapTransition
		err = json.Unmarshal(data, &e)
		if e.MapType == "" {
			e.MapType = model.MapUnknown
		}
		ev = e
	case TypeEventObject:
		var e EventObjectDiscovered
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeChestOpened:
		var e ChestOpened
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeValueGained:
		var e ValueGained
		err = json.Unmarshal(data, &e)
		ev = e
	case TypePlayerDied:
		var e PlayerDied
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeRemoveRuns:
		var e RemoveRuns
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", env.Type, err)
	}
	return ev, nil
}

// Encode renders ev with its type tag.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}
