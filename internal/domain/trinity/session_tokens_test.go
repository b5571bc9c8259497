package trinity

import "testing"

func TestSessionTokenCounterAdd(t *testing.T) {
	c := NewSessionTokenCounter()
	c.Add("sess-1", 10)
	c.Add("sess-1", 5)
	c.Add("sess-2", 100)

	if got := c.Total("sess-1"); got != 15 {
		t.Errorf("Total(sess-1) = %d, want 15", got)
	}
	if got := c.Total("sess-2"); got != 100 {
		t.Errorf("Total(sess-2) = %d, want 100", got)
	}
	if got := c.Total("missing"); got != 0 {
		t.Errorf("Total(missing) = %d, want 0", got)
	}
}

func TestSessionTokenCounterBoundedWindow(t *testing.T) {
	c := NewSessionTokenCounter()
	for i := 0; i < sessionTokenWindow+10; i++ {
		c.Add("sess-1", 1)
	}
	if got := len(c.Samples("sess-1")); got != sessionTokenWindow {
		t.Errorf("sample window length = %d, want %d", got, sessionTokenWindow)
	}
	if got := c.Total("sess-1"); got != int64(sessionTokenWindow+10) {
		t.Errorf("Total should keep summing past the window bound: got %d", got)
	}
}
