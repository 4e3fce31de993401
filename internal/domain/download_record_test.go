package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDownloadState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from DownloadState
		to   DownloadState
		want bool
	}{
		{StateRegistered, StateInProgress, true},
		{StateRegistered, StateCompleted, true},
		{StateRegistered, StateInterrupted, true},
		{StateRegistered, StateRegistered, false},
		{StateInProgress, StateInProgress, true},
		{StateInProgress, StateCancelled, true},
		{StateInProgress, StateRegistered, false},
		{StateCompleted, StateInProgress, false},
		{StateCompleted, StateCancelled, false},
		{StateCancelled, StateCompleted, false},
		{StateInterrupted, StateRegistered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDownloadRecord_ApplyProgress(t *testing.T) {
	r := NewDownloadRecord("dl_1", "report.pdf", "https://example.com/report.pdf", "/tmp/report.pdf", UnknownSize, time.Now())

	if r.State != StateRegistered {
		t.Fatalf("State = %v, want %v", r.State, StateRegistered)
	}

	if err := r.ApplyProgress(100, 1000); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if r.State != StateInProgress {
		t.Errorf("State = %v, want %v", r.State, StateInProgress)
	}
	if r.ReceivedBytes != 100 || r.TotalBytes != 1000 {
		t.Errorf("bytes = %d/%d, want 100/1000", r.ReceivedBytes, r.TotalBytes)
	}

	// Received bytes never go backwards
	if err := r.ApplyProgress(50, 1000); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if r.ReceivedBytes != 100 {
		t.Errorf("ReceivedBytes = %d, want 100 (non-decreasing)", r.ReceivedBytes)
	}

	// Never exceeds a known total
	if err := r.ApplyProgress(5000, 1000); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if r.ReceivedBytes != 1000 {
		t.Errorf("ReceivedBytes = %d, want 1000 (clamped)", r.ReceivedBytes)
	}

	// Unknown total in a later observation keeps the known one
	if err := r.ApplyProgress(1000, UnknownSize); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if r.TotalBytes != 1000 {
		t.Errorf("TotalBytes = %d, want 1000", r.TotalBytes)
	}
}

func TestDownloadRecord_ApplyProgress_TotalBelowReceived(t *testing.T) {
	r := NewDownloadRecord("dl_2", "a.bin", "https://example.com/a.bin", "/tmp/a.bin", UnknownSize, time.Now())

	if err := r.ApplyProgress(100, UnknownSize); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if !r.ShrinksTotal(50) {
		t.Error("ShrinksTotal(50) = false, want true")
	}
	if r.ShrinksTotal(UnknownSize) {
		t.Error("ShrinksTotal(UnknownSize) = true, want false")
	}

	if err := r.ApplyProgress(100, 50); err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if r.ReceivedBytes != 100 {
		t.Errorf("ReceivedBytes = %d, want 100 (non-decreasing)", r.ReceivedBytes)
	}
	if r.TotalBytes != 100 {
		t.Errorf("TotalBytes = %d, want 100", r.TotalBytes)
	}
	if p := r.Progress(); p != 1 {
		t.Errorf("Progress() = %v, want 1", p)
	}

	// Finish keeps the raised total
	if err := r.Finish(StateCompleted, 100, time.Now()); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if r.ReceivedBytes != 100 || r.TotalBytes != 100 {
		t.Errorf("bytes = %d/%d, want 100/100", r.ReceivedBytes, r.TotalBytes)
	}
}

func TestDownloadRecord_Finish(t *testing.T) {
	t.Run("completed with unknown total adopts received", func(t *testing.T) {
		r := NewDownloadRecord("dl_1", "a.bin", "u", "/p/a.bin", UnknownSize, time.Now())
		_ = r.ApplyProgress(42, UnknownSize)

		end := time.Now()
		if err := r.Finish(StateCompleted, 64, end); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if r.TotalBytes != 64 || r.ReceivedBytes != 64 {
			t.Errorf("bytes = %d/%d, want 64/64", r.ReceivedBytes, r.TotalBytes)
		}
		if r.EndTime == nil || !r.EndTime.Equal(end) {
			t.Errorf("EndTime = %v, want %v", r.EndTime, end)
		}
		if r.Cancelled {
			t.Error("Cancelled = true, want false")
		}
	})

	t.Run("cancelled sets flag", func(t *testing.T) {
		r := NewDownloadRecord("dl_2", "a.bin", "u", "/p/a.bin", 10, time.Now())
		if err := r.Finish(StateCancelled, 3, time.Now()); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if !r.Cancelled {
			t.Error("Cancelled = false, want true")
		}
	})

	t.Run("terminal records never regress", func(t *testing.T) {
		r := NewDownloadRecord("dl_3", "a.bin", "u", "/p/a.bin", 10, time.Now())
		_ = r.Finish(StateCompleted, 10, time.Now())

		if err := r.ApplyProgress(5, 10); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("ApplyProgress() after terminal error = %v, want ErrInvalidStateTransition", err)
		}
		if err := r.Finish(StateCancelled, 10, time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("Finish() after terminal error = %v, want ErrInvalidStateTransition", err)
		}
		if r.State != StateCompleted {
			t.Errorf("State = %v, want %v", r.State, StateCompleted)
		}
	})

	t.Run("non-terminal target rejected", func(t *testing.T) {
		r := NewDownloadRecord("dl_4", "a.bin", "u", "/p/a.bin", 10, time.Now())
		if err := r.Finish(StateInProgress, 0, time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("Finish(InProgress) error = %v, want ErrInvalidStateTransition", err)
		}
	})
}

func TestDownloadRecord_Progress(t *testing.T) {
	r := NewDownloadRecord("dl_1", "a", "u", "p", UnknownSize, time.Now())
	if got := r.Progress(); got != -1 {
		t.Errorf("Progress() unknown total = %v, want -1", got)
	}

	_ = r.ApplyProgress(25, 100)
	if got := r.Progress(); got != 0.25 {
		t.Errorf("Progress() = %v, want 0.25", got)
	}
}

func TestDownloadRecord_Clone(t *testing.T) {
	r := NewDownloadRecord("dl_1", "a", "u", "p", 10, time.Now())
	_ = r.Finish(StateCompleted, 10, time.Now())

	c := r.Clone()
	*c.EndTime = c.EndTime.Add(time.Hour)
	c.Filename = "b"

	if r.Filename != "a" {
		t.Error("Clone shares Filename with original")
	}
	if r.EndTime.Equal(*c.EndTime) {
		t.Error("Clone shares EndTime pointer with original")
	}
}
