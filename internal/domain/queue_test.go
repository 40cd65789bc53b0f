package domain

import (
	"testing"
	"time"
)

func TestNewWaitEstimate(t *testing.T) {
	tests := []struct {
		name          string
		position      int64
		batchSize     int64
		batchInterval time.Duration
		wantSeconds   int64
		wantHuman     string
	}{
		{
			name:          "first batch",
			position:      1,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   30,
			wantHuman:     "0m30s",
		},
		{
			name:          "last slot of first batch",
			position:      50,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   30,
			wantHuman:     "0m30s",
		},
		{
			name:          "first slot of second batch",
			position:      51,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   60,
			wantHuman:     "1m0s",
		},
		{
			name:          "deep queue",
			position:      1000,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   600,
			wantHuman:     "10m0s",
		},
		{
			name:          "zero position clamps to one",
			position:      0,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   30,
			wantHuman:     "0m30s",
		},
		{
			name:          "negative position clamps to one",
			position:      -5,
			batchSize:     50,
			batchInterval: 30 * time.Second,
			wantSeconds:   30,
			wantHuman:     "0m30s",
		},
		{
			name:          "zero batch size clamps to one",
			position:      3,
			batchSize:     0,
			batchInterval: 10 * time.Second,
			wantSeconds:   30,
			wantHuman:     "0m30s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewWaitEstimate(tt.position, tt.batchSize, tt.batchInterval)

			if got.Seconds != tt.wantSeconds {
				t.Errorf("Seconds = %d, want %d", got.Seconds, tt.wantSeconds)
			}
			if got.Human != tt.wantHuman {
				t.Errorf("Human = %q, want %q", got.Human, tt.wantHuman)
			}
			if got.Milliseconds != tt.wantSeconds*1000 {
				t.Errorf("Milliseconds = %d, want %d", got.Milliseconds, tt.wantSeconds*1000)
			}
		})
	}
}

func TestQueueEntry_Validate(t *testing.T) {
	entry := &QueueEntry{UserID: "user-1", EventID: "event-1"}
	if err := entry.Validate(); err != nil {
		t.Errorf("expected valid entry, got %v", err)
	}

	missingUser := &QueueEntry{EventID: "event-1"}
	if err := missingUser.Validate(); err != ErrInvalidUserID {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}

	missingEvent := &QueueEntry{UserID: "user-1"}
	if err := missingEvent.Validate(); err != ErrInvalidEventID {
		t.Errorf("expected ErrInvalidEventID, got %v", err)
	}
}
