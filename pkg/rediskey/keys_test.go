package rediskey

import "testing"

func TestKeys(t *testing.T) {
	if EventChannel("match.ended") != "zombies:events:match.ended" {
		t.Error("unexpected event channel")
	}
	if Lock("server:s1") != "zombies:lock:server:s1" {
		t.Error("unexpected lock key")
	}
}
