package timewindow

import "testing"

func TestWindowOf_AnchorIsWindow1(t *testing.T) {
	idx := New(1000, 3600)
	if got := idx.WindowOf(1000); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestWindowOf_RightBoundaryIsNextWindow(t *testing.T) {
	idx := New(1000, 3600)
	if got := idx.WindowOf(1000 + 3600); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestWindowOf_JustBeforeBoundaryStaysInWindow1(t *testing.T) {
	idx := New(1000, 3600)
	if got := idx.WindowOf(1000 + 3599.999999); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestWindowOf_BeforeAnchorIsNonPositive(t *testing.T) {
	idx := New(1000, 3600)
	if got := idx.WindowOf(100); got > 0 {
		t.Errorf("got %d, want <= 0", got)
	}
}

func TestBounds_MatchesWindowOf(t *testing.T) {
	idx := New(1000, 3600)
	start, end := idx.Bounds(2)
	if start != 4600 || end != 8200 {
		t.Errorf("got (%v, %v), want (4600, 8200)", start, end)
	}
}

func TestRegisterTW_IdempotentReturnValue(t *testing.T) {
	idx := New(1000, 3600)
	if !idx.RegisterTW(1) {
		t.Error("expected first registration to return true")
	}
	if idx.RegisterTW(1) {
		t.Error("expected second registration to return false")
	}
	if idx.RegisteredCount() != 1 {
		t.Errorf("got %d registered, want 1", idx.RegisteredCount())
	}
}

func TestDefaultWidth_AppliedWhenZero(t *testing.T) {
	idx := New(1000, 0)
	if idx.Width() != DefaultWidthSeconds {
		t.Errorf("got width %v, want %v", idx.Width(), DefaultWidthSeconds)
	}
}
