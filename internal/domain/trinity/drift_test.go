package trinity

import (
	"testing"
	"time"
)

func TestDriftMonitorMean(t *testing.T) {
	d := NewDriftMonitor()
	if d.Mean() != 0 {
		t.Error("empty monitor should report zero mean")
	}

	d.Record(100 * time.Millisecond)
	d.Record(200 * time.Millisecond)
	d.Record(300 * time.Millisecond)

	if got := d.Mean(); got != 200*time.Millisecond {
		t.Errorf("Mean() = %v, want 200ms", got)
	}
}

func TestDriftMonitorDrift(t *testing.T) {
	d := NewDriftMonitor()
	d.Record(100 * time.Millisecond)
	d.Record(100 * time.Millisecond)

	drift := d.Drift(200 * time.Millisecond)
	if drift != 1.0 {
		t.Errorf("Drift() = %v, want 1.0 (double the mean)", drift)
	}
}

func TestDriftMonitorBoundedWindow(t *testing.T) {
	d := NewDriftMonitor()
	for i := 0; i < latencyWindowSize+20; i++ {
		d.Record(time.Duration(i) * time.Millisecond)
	}
	if got := d.SampleCount(); got != latencyWindowSize {
		t.Errorf("SampleCount() = %d, want %d", got, latencyWindowSize)
	}
}
