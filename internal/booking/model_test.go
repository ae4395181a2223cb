package booking

import (
	"testing"
	"time"
)

func TestAppointmentDateOf(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		{
			"midday UTC",
			time.Date(2026, 9, 14, 11, 30, 0, 0, time.UTC),
			time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			"late evening local crosses into next UTC-equal date",
			time.Date(2026, 9, 14, 2, 0, 0, 0, ist),
			time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			"exact midnight stays on its date",
			time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppointmentDateOf(tt.start); !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
