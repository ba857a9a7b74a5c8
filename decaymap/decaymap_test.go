package decaymap

import (
	"testing"
	"time"
)

func TestImpl(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test", "hi", 5*time.Minute)

	val, ok := dm.Get("test")
	if !ok {
		t.Error("somehow the test key was not set")
	}

	if val != "hi" {
		t.Errorf("wanted value %q, got: %q", "hi", val)
	}

	ok = dm.expire("test")
	if !ok {
		t.Fatal("expire should have returned true")
	}

	if _, ok := dm.Get("test"); ok {
		t.Error("got value even though it was supposed to be expired")
	}

	if dm.Delete("test") {
		t.Error("expired key should have been pruned by Get")
	}
}

func TestCleanup(t *testing.T) {
	dm := New[string, int]()

	dm.Set("stale", 1, time.Millisecond)
	dm.Set("fresh", 2, time.Hour)

	//nosleep:bypass the entry needs to age past its ttl
	time.Sleep(5 * time.Millisecond)

	dm.Cleanup()

	if n := dm.Len(); n != 1 {
		t.Fatalf("wanted 1 entry after cleanup, got %d", n)
	}

	if _, ok := dm.Get("fresh"); !ok {
		t.Error("fresh entry was removed by cleanup")
	}
}
