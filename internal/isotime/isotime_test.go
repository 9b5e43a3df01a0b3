package isotime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339 utc", "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-01-15T12:30:00+02:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"naive micros", "2024-01-15T10:30:00.123456", time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)},
		{"naive seconds", "2024-01-15T10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"space separator", "2024-01-15 10:30:00.5", time.Date(2024, 1, 15, 10, 30, 0, 500000000, time.UTC)},
		{"date only", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := Parse("15/01/2024"); err == nil {
		t.Error("expected error for non ISO-8601 input")
	}
}

func TestUnmarshalJSON(t *testing.T) {
	var v struct {
		Created *Time `json:"created"`
		Ended   *Time `json:"ended"`
		Plain   Time  `json:"plain"`
	}
	data := `{"created":"2024-01-15T10:30:00.123456","ended":null,"plain":"2024-01-15T10:30:00Z"}`
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Created == nil || !v.Created.Equal(time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)) {
		t.Errorf("unexpected created %v", v.Created)
	}
	if v.Ended != nil {
		t.Errorf("expected nil ended, got %v", v.Ended)
	}
	if v.Plain.IsZero() {
		t.Error("expected plain to be set")
	}

	if err := json.Unmarshal([]byte(`{"plain":42}`), &v); err == nil {
		t.Error("expected error for a non-string timestamp")
	}
	if err := json.Unmarshal([]byte(`{"plain":"yesterday"}`), &v); err == nil {
		t.Error("expected error for an unparseable timestamp")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := New(time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC))
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-01-15T10:30:00.123456Z"` {
		t.Errorf("unexpected encoding %s", data)
	}
	var out Time
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Equal(in.Time) {
		t.Errorf("round trip changed time: %v != %v", out, in)
	}
}
