package connection

import (
	"testing"
	"time"
)

func TestBackoffPolicy_Delay(t *testing.T) {
	p := DefaultBackoffPolicy()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestBackoffPolicy_DelayLargeAttempt(t *testing.T) {
	p := DefaultBackoffPolicy()

	for _, attempt := range []int{11, 64, 1000} {
		if got := p.Delay(attempt); got != 30*time.Second {
			t.Errorf("Delay(%d) = %v, want 30s", attempt, got)
		}
	}
	if got := p.Delay(-1); got != time.Second {
		t.Errorf("Delay(-1) = %v, want 1s", got)
	}
}

func TestBackoffPolicy_Jitter(t *testing.T) {
	p := DefaultBackoffPolicy()
	p.Jitter = true

	for attempt := 0; attempt < 10; attempt++ {
		ceiling := DefaultBackoffPolicy().Delay(attempt)
		for i := 0; i < 50; i++ {
			got := p.Delay(attempt)
			if got < ceiling/2 || got > ceiling {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", attempt, got, ceiling/2, ceiling)
			}
		}
	}
}

func TestBackoffPolicy_Exhausted(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		attempt int
		want    bool
	}{
		{"first attempt", 10, 0, false},
		{"last allowed", 10, 9, false},
		{"at ceiling", 10, 10, true},
		{"past ceiling", 10, 11, true},
		{"no ceiling", 0, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BackoffPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: tt.max}
			if got := p.Exhausted(tt.attempt); got != tt.want {
				t.Errorf("Exhausted(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
