package models

import (
	"encoding/json"
	"testing"
)

func TestStatusEventJSON(t *testing.T) {
	tests := []struct {
		name  string
		event StatusEvent
		want  string
	}{
		{
			name:  "Active report",
			event: NewActiveEvent("s3cret", 2, "Editor"),
			want:  `{"secret":"s3cret","device":2,"status":1,"app":"Editor"}`,
		},
		{
			name:  "Asleep report",
			event: NewAsleepEvent("s3cret", 2),
			want:  `{"secret":"s3cret","device":2,"status":0,"app":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	event := NewActiveEvent("s3cret", 7, "Terminal")
	redacted := event.Redacted()

	if redacted.Secret != "" {
		t.Errorf("Redacted().Secret = %q, want empty", redacted.Secret)
	}
	if event.Secret != "s3cret" {
		t.Errorf("original event was modified: Secret = %q", event.Secret)
	}
	if redacted.App != "Terminal" || redacted.Device != 7 {
		t.Errorf("Redacted() = %+v, other fields changed", redacted)
	}
}

func TestModeString(t *testing.T) {
	if ModeActive.String() != "active" {
		t.Errorf("ModeActive.String() = %s, want active", ModeActive.String())
	}
	if ModeIdle.String() != "idle" {
		t.Errorf("ModeIdle.String() = %s, want idle", ModeIdle.String())
	}
	if StatusAsleep.String() != "asleep" {
		t.Errorf("StatusAsleep.String() = %s, want asleep", StatusAsleep.String())
	}
}
