package viewport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/lolikgiovi/lockey/pkg/dataset"
)

func TestRecomputeInvariants(t *testing.T) {
	cases := []struct {
		name           string
		offset, height int
		total          int
	}{
		{"empty list", 0, 400, 0},
		{"single row", 0, 400, 1},
		{"tiny viewport", 0, 1, 50000},
		{"mid scroll", 123456, 800, 50000},
		{"scrolled past end", 10_000_000, 800, 100},
		{"zero height", 500, 0, 1000},
		{"negative inputs", -10, -10, -5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewController(36, 10)
			w, _ := c.Recompute(tc.offset, tc.height, tc.total)

			total := tc.total
			if total < 0 {
				total = 0
			}
			if w.Start < 0 || w.Start > w.End || w.End > total {
				t.Errorf("invariant violated: start=%d end=%d total=%d", w.Start, w.End, total)
			}
		})
	}
}

func TestWindowCoversCoreRows(t *testing.T) {
	c := NewController(36, 10)
	// 800px viewport over 36px rows -> 23 core rows
	w, changed := c.Recompute(0, 800, 50000)
	if !changed {
		t.Fatal("first recompute must replace the window")
	}
	core := (800 + 35) / 36
	if w.End-w.Start < core {
		t.Errorf("window %v smaller than core rows %d", w, core)
	}
}

func TestHysteresisSkipsSmallScrolls(t *testing.T) {
	c := NewController(36, 10)
	first, _ := c.Recompute(3600, 800, 50000)

	// a few pixels of scroll stays inside the overscan band
	w, changed := c.Recompute(3650, 800, 50000)
	if changed {
		t.Error("small scroll should not replace the window")
	}
	if w != first {
		t.Error("unchanged recompute must return the existing window")
	}

	// a whole page of scroll leaves the band
	_, changed = c.Recompute(3600+800+36*10, 800, 50000)
	if !changed {
		t.Error("large scroll should replace the window")
	}
}

func TestRecomputeAfterTotalChange(t *testing.T) {
	c := NewController(36, 10)
	c.Recompute(0, 800, 50000)

	// same metrics but the filtered row count collapsed
	w, changed := c.Recompute(0, 800, 5)
	if !changed {
		t.Error("total change must replace the window")
	}
	if w.End > 5 {
		t.Errorf("window end %d exceeds new total 5", w.End)
	}
}

func TestWindowClampedAtBottom(t *testing.T) {
	c := NewController(10, 5)
	// offset puts the viewport at the very end of 100 rows
	w, _ := c.Recompute(950, 100, 100)
	if w.End != 100 {
		t.Errorf("expected window to end at total, got %d", w.End)
	}
	if w.End-w.Start < 10 {
		t.Errorf("bottom-clamped window should extend upward, got %v", w)
	}
}

func TestPlanSpacers(t *testing.T) {
	c := NewController(36, 10)
	c.Recompute(3600, 800, 1000)
	plan := c.Plan(1000)

	if plan.TopSpacer != plan.Window.Start*36 {
		t.Errorf("top spacer %d != start*rowHeight %d", plan.TopSpacer, plan.Window.Start*36)
	}
	if plan.BottomSpacer != (1000-plan.Window.End)*36 {
		t.Errorf("bottom spacer %d mismatched", plan.BottomSpacer)
	}
	// spacers plus rendered rows reconstruct the full scrollable height
	rendered := (plan.Window.End - plan.Window.Start) * 36
	if plan.TopSpacer+rendered+plan.BottomSpacer != 1000*36 {
		t.Error("total scrollable height not preserved")
	}
}

func TestRenderCallback(t *testing.T) {
	rows := make([]dataset.Row, 100)
	for i := range rows {
		rows[i] = dataset.Row{Key: "k", Values: map[string]string{}}
	}

	c := NewController(10, 2)
	c.Recompute(200, 50, len(rows))

	var got int
	c.Render(rows, []string{"en"}, func(visible []dataset.Row, languages []string, plan RenderPlan) {
		got = len(visible)
		if got != plan.Window.End-plan.Window.Start {
			t.Error("visible slice does not match plan window")
		}
	})
	if got == 0 {
		t.Error("render callback not invoked")
	}
}

func TestFrameThrottleCoalesces(t *testing.T) {
	th := NewFrameThrottle(25 * time.Millisecond)
	defer th.Stop()

	var ran atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 10; i++ {
		n := int32(i)
		th.Schedule(func() {
			ran.Add(1)
			last.Store(n)
		})
	}

	time.Sleep(80 * time.Millisecond)

	if got := ran.Load(); got != 1 {
		t.Errorf("expected 1 coalesced invocation, got %d", got)
	}
	if last.Load() != 10 {
		t.Errorf("latest scheduled function should win, got %d", last.Load())
	}
}

func TestFrameThrottleStop(t *testing.T) {
	th := NewFrameThrottle(10 * time.Millisecond)

	var ran atomic.Int32
	th.Schedule(func() { ran.Add(1) })
	th.Stop()

	time.Sleep(40 * time.Millisecond)
	if ran.Load() != 0 {
		t.Error("Stop should discard pending work")
	}
}
