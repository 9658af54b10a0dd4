package control

import "testing"

func TestArmIsReentrancySafe(t *testing.T) {
	c := New(10, 60)
	c.Seek.arm(-10)
	c.Seek.arm(10) // should be a no-op: already armed

	delta, ok := c.Seek.TakeIfArmed()
	if !ok {
		t.Fatalf("expected a pending seek")
	}
	if delta != -10 {
		t.Fatalf("expected the first arm to win, got delta=%v", delta)
	}

	if _, ok := c.Seek.TakeIfArmed(); ok {
		t.Fatalf("expected TakeIfArmed to disarm after consuming")
	}
}

func TestArmRearmsAfterConsumption(t *testing.T) {
	c := New(10, 60)
	c.Seek.arm(10)
	if _, ok := c.Seek.TakeIfArmed(); !ok {
		t.Fatalf("expected a pending seek")
	}

	c.Seek.arm(-60)
	delta, ok := c.Seek.TakeIfArmed()
	if !ok || delta != -60 {
		t.Fatalf("expected a fresh seek to arm after the previous one was consumed, got %v ok=%v", delta, ok)
	}
}

func TestCloseRequestedDefaultsFalse(t *testing.T) {
	c := New(10, 60)
	if c.CloseRequested() {
		t.Fatalf("expected CloseRequested to start false")
	}
	c.close.Store(true)
	if !c.CloseRequested() {
		t.Fatalf("expected CloseRequested to reflect the stored flag")
	}
}

func TestSetCloseMarksCloseRequested(t *testing.T) {
	c := New(10, 60)
	c.SetClose()
	if !c.CloseRequested() {
		t.Fatalf("expected SetClose to mark CloseRequested true")
	}
}
