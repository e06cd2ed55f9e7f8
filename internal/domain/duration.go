package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Durations travel as fractional seconds in JSON, both on the wire and in
// stored documents.

// Seconds converts d to fractional seconds.
func Seconds(d time.Duration) float64 { return d.Seconds() }

// MaxSessionDuration bounds a single recorded work session.
const MaxSessionDuration = 7 * 24 * time.Hour

// FromSeconds converts fractional seconds to a Duration, rounding to the
// nearest nanosecond. Values outside the Duration range saturate and NaN
// becomes zero.
func FromSeconds(s float64) time.Duration {
	ns := math.Round(s * float64(time.Second))
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= float64(math.MaxInt64):
		return math.MaxInt64
	case ns <= float64(math.MinInt64):
		return math.MinInt64
	}
	return time.Duration(ns)
}

type timeSessionJSON struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration float64   `json:"duration"`
	UserID   uuid.UUID `json:"user_id"`
}

func (s TimeSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeSessionJSON{
		Start:    s.Start,
		End:      s.End,
		Duration: Seconds(s.Duration),
		UserID:   s.UserID,
	})
}

func (s *TimeSession) UnmarshalJSON(b []byte) error {
	var v timeSessionJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = TimeSession{Start: v.Start, End: v.End, Duration: FromSeconds(v.Duration), UserID: v.UserID}
	return nil
}

type timeTrackingJSON struct {
	Sessions  []TimeSession `json:"sessions"`
	TotalTime float64       `json:"total_time"`
}

func (tt TimeTracking) MarshalJSON() ([]byte, error) {
	sessions := tt.Sessions
	if sessions == nil {
		sessions = []TimeSession{}
	}
	return json.Marshal(timeTrackingJSON{Sessions: sessions, TotalTime: Seconds(tt.TotalTime)})
}

func (tt *TimeTracking) UnmarshalJSON(b []byte) error {
	var v timeTrackingJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*tt = TimeTracking{Sessions: v.Sessions, TotalTime: FromSeconds(v.TotalTime)}
	return nil
}
