package ipc

import "testing"

type fakeSender struct {
	sent   []*Message
	closed bool
	fail   bool
}

func (f *fakeSender) Send(msg *Message) error {
	if f.fail {
		return &ParseError{Reason: "send failed"}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Close(code int, reason string) error {
	f.closed = true
	return nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&Connection{ID: "c1", UserID: "u1", Sender: &fakeSender{}})

	conn, ok := r.Get("c1")
	if !ok || conn.UserID != "u1" {
		t.Fatalf("Get = %+v, %v", conn, ok)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(&Connection{ID: "c1", UserID: "u1", Sender: &fakeSender{}})
	r.Remove("c1")
	r.Remove("c1") // second remove must not panic
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("expected c1 to be gone")
	}
}

func TestRegistryTouchAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Touch("missing", 1000) // must not panic
}

func TestRegistryListByUser(t *testing.T) {
	r := NewRegistry()
	r.Register(&Connection{ID: "a1", UserID: "userA", Sender: &fakeSender{}})
	r.Register(&Connection{ID: "a2", UserID: "userA", Sender: &fakeSender{}})
	r.Register(&Connection{ID: "b1", UserID: "userB", Sender: &fakeSender{}})

	if got := r.List("userA"); len(got) != 2 {
		t.Fatalf("List(userA) = %d conns, want 2", len(got))
	}
	if got := r.List(""); len(got) != 3 {
		t.Fatalf("List(\"\") = %d conns, want 3", len(got))
	}
}

func TestRegistrySendCommandToUserFanOut(t *testing.T) {
	r := NewRegistry()
	senderA1, senderA2 := &fakeSender{}, &fakeSender{}
	senderB1 := &fakeSender{}
	r.Register(&Connection{ID: "a1", UserID: "userA", Sender: senderA1})
	r.Register(&Connection{ID: "a2", UserID: "userA", Sender: senderA2})
	r.Register(&Connection{ID: "b1", UserID: "userB", Sender: senderB1})

	msg := BuildCommand("cmd1", "do_thing", "now", nil)
	result := r.SendCommandToUser("userA", msg)

	if !result.OK || result.SentCount != 2 {
		t.Fatalf("result = %+v, want ok=true sentCount=2", result)
	}
	if len(senderB1.sent) != 0 {
		t.Error("userB must not receive userA's command")
	}
}

func TestRegistrySendCommandToUserAllFail(t *testing.T) {
	r := NewRegistry()
	r.Register(&Connection{ID: "a1", UserID: "userA", Sender: &fakeSender{fail: true}})

	result := r.SendCommandToUser("userA", BuildCommand("c", "n", "now", nil))
	if result.OK {
		t.Error("expected ok=false when every send fails")
	}
	if result.Error == "" {
		t.Error("expected an error string when ok=false")
	}
}

func TestRegistrySendMessageToConnectionMissing(t *testing.T) {
	r := NewRegistry()
	if r.SendMessageToConnection("missing", BuildError("x", "now", "")) {
		t.Error("expected false for missing connection")
	}
}

func TestRegistryReapStaleConnection(t *testing.T) {
	r := NewRegistry()
	sender := &fakeSender{}
	r.Register(&Connection{ID: "c1", UserID: "u1", Sender: sender, LastSeenMs: 0})

	reaped := r.Reap(120000, 90000)
	if len(reaped) != 1 || reaped[0] != "c1" {
		t.Fatalf("Reap() = %v, want [c1]", reaped)
	}
	if !sender.closed {
		t.Error("expected socket to be force-closed")
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("expected c1 removed from registry after reap")
	}
}

func TestRegistryReapSparesFreshConnection(t *testing.T) {
	r := NewRegistry()
	sender := &fakeSender{}
	r.Register(&Connection{ID: "c1", UserID: "u1", Sender: sender, LastSeenMs: 119000})

	reaped := r.Reap(120000, 90000)
	if len(reaped) != 0 {
		t.Fatalf("Reap() = %v, want none reaped", reaped)
	}
}

func TestRegistryUpdateMetadataShallowMerge(t *testing.T) {
	r := NewRegistry()
	r.Register(&Connection{ID: "c1", Sender: &fakeSender{}, Platform: "cli"})
	r.UpdateMetadata("c1", MetadataPatch{ClientID: "abc"})

	conn, _ := r.Get("c1")
	if conn.ClientID != "abc" || conn.Platform != "cli" {
		t.Errorf("conn = %+v, want clientId=abc and platform unchanged", conn)
	}
}
