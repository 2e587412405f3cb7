package periph

import (
	"testing"
	"time"
)

func TestTimeoutBudget(t *testing.T) {
	to := Micros(1000, 100)
	if got := to.Budget(10); got != 2000*time.Microsecond {
		t.Fatalf("Budget(10) = %v", got)
	}
	if got := to.Budget(0); got != 1000*time.Microsecond {
		t.Fatalf("Budget(0) = %v", got)
	}
}

func TestTimeoutZeroMeansNoDeadline(t *testing.T) {
	var to Timeout
	if !to.IsZero() {
		t.Fatal("zero Timeout should report IsZero")
	}
	if !to.Deadline(time.Now(), 64).IsZero() {
		t.Fatal("zero Timeout should yield zero deadline")
	}
}

func TestTimeoutDeadline(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	to := Micros(500, 10)
	want := start.Add(600 * time.Microsecond)
	if got := to.Deadline(start, 10); !got.Equal(want) {
		t.Fatalf("Deadline = %v, want %v", got, want)
	}
}
