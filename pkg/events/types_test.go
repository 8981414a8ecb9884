package events

import "testing"

func TestUserChannel(t *testing.T) {
	if got := UserChannel("u1"); got != "user:u1" {
		t.Fatalf("UserChannel() = %q, want %q", got, "user:u1")
	}
}

func TestCovenantChannel(t *testing.T) {
	if got := CovenantChannel("c1"); got != "covenant:c1" {
		t.Fatalf("CovenantChannel() = %q, want %q", got, "covenant:c1")
	}
}
