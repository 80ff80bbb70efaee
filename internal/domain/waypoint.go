package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// DefaultWaypointAction is used when an ingested waypoint names no action.
const DefaultWaypointAction = "visit"

// Waypoint is one stop in a mission plan.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Action    string  `json:"action"`
}

// Validate checks coordinate ranges and the action label.
func (w Waypoint) Validate() error {
	if math.IsNaN(w.Latitude) || w.Latitude < -90 || w.Latitude > 90 {
		return Invalid(ErrInvalidWaypoint, "latitude %v out of range", w.Latitude)
	}
	if math.IsNaN(w.Longitude) || w.Longitude < -180 || w.Longitude > 180 {
		return Invalid(ErrInvalidWaypoint, "longitude %v out of range", w.Longitude)
	}
	if strings.TrimSpace(w.Action) == "" {
		return Invalid(ErrInvalidWaypoint, "action is required")
	}
	return nil
}

// rawWaypoint accepts the short and long key spellings clients send.
type rawWaypoint struct {
	Lat       *float64 `json:"lat"`
	Latitude  *float64 `json:"latitude"`
	Lng       *float64 `json:"lng"`
	Lon       *float64 `json:"lon"`
	Longitude *float64 `json:"longitude"`
	Action    *string  `json:"action"`
}

// ParseWaypoints converts loosely-typed JSON waypoint objects into a typed,
// ordered sequence. Any malformed entry rejects the whole batch.
func ParseWaypoints(raw []json.RawMessage) ([]Waypoint, error) {
	out := make([]Waypoint, 0, len(raw))
	for i, msg := range raw {
		var rw rawWaypoint
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rw); err != nil {
			return nil, Invalid(ErrInvalidWaypoint, "waypoint %d: %v", i, err)
		}
		lat := firstSet(rw.Lat, rw.Latitude)
		lon := firstSet(rw.Lng, rw.Lon, rw.Longitude)
		if lat == nil || lon == nil {
			return nil, Invalid(ErrInvalidWaypoint, "waypoint %d: latitude and longitude are required", i)
		}
		wp := Waypoint{Latitude: *lat, Longitude: *lon, Action: DefaultWaypointAction}
		if rw.Action != nil {
			wp.Action = strings.TrimSpace(*rw.Action)
		}
		if err := wp.Validate(); err != nil {
			return nil, Invalid(ErrInvalidWaypoint, "waypoint %d: %v", i, err)
		}
		out = append(out, wp)
	}
	return out, nil
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
