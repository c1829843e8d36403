// Package viewport computes the bounded window of rows a scrollable view
// should render, with overscan hysteresis so small scrolls do not force a
// re-render on every pixel.
package viewport

import (
	"github.com/lolikgiovi/lockey/pkg/dataset"
)

// Window is the currently rendered row range. Start is inclusive, End
// exclusive. Invariant: 0 <= Start <= End <= totalRows, and End-Start covers
// at least the core viewport rows whenever enough rows exist.
type Window struct {
	Start int `json:"startIndex"`
	End   int `json:"endIndex"`
}

// Contains reports whether the row index falls inside the window.
func (w Window) Contains(index int) bool {
	return index >= w.Start && index < w.End
}

// Controller tracks the active window and last viewport metrics.
// Single-writer: meant to be driven from one render loop.
type Controller struct {
	RowHeight int // pixel height of one row
	Overscan  int // extra rows rendered beyond the visible viewport

	window    Window
	hasWindow bool
	lastTotal int
}

// NewController creates a controller. Non-positive rowHeight falls back to 1
// so index math stays defined; overscan is clamped at zero.
func NewController(rowHeight, overscan int) *Controller {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if overscan < 0 {
		overscan = 0
	}
	return &Controller{RowHeight: rowHeight, Overscan: overscan}
}

// Window returns the current window.
func (c *Controller) Window() Window {
	return c.window
}

// Recompute evaluates the viewport metrics against the current window.
// It returns the window and whether it was replaced. Inside the overscan
// hysteresis band the existing window is kept (changed == false).
func (c *Controller) Recompute(scrollOffset, viewportHeight, totalRows int) (Window, bool) {
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}
	if totalRows < 0 {
		totalRows = 0
	}

	topRow := scrollOffset / c.RowHeight
	coreRows := (viewportHeight + c.RowHeight - 1) / c.RowHeight

	visibleStart := topRow
	visibleEnd := topRow + coreRows
	if visibleEnd > totalRows {
		visibleEnd = totalRows
	}
	if visibleStart > visibleEnd {
		visibleStart = visibleEnd
	}

	if c.hasWindow && totalRows == c.lastTotal && c.withinBand(visibleStart, visibleEnd) {
		return c.window, false
	}

	c.window = buildWindow(topRow, coreRows, c.Overscan, totalRows)
	c.hasWindow = true
	c.lastTotal = totalRows
	return c.window, true
}

// withinBand reports whether the visible range still sits inside the padded
// window without drifting past the overscan slack. The window's overscan
// padding is what gives small scrolls room before a replacement is needed.
func (c *Controller) withinBand(visibleStart, visibleEnd int) bool {
	if visibleStart < c.window.Start || visibleEnd > c.window.End {
		return false
	}
	if visibleStart-c.window.Start > 2*c.Overscan {
		return false
	}
	if c.window.End-visibleEnd > 2*c.Overscan {
		return false
	}
	return true
}

// buildWindow centers a padded window on the visible range, clamped to the
// row count. The padding is what makes the hysteresis band possible.
func buildWindow(topRow, coreRows, overscan, totalRows int) Window {
	size := coreRows + 2*overscan
	start := topRow - overscan
	end := start + size
	if end > totalRows {
		end = totalRows
		start = end - size
	}
	if start < 0 {
		start = 0
		end = size
		if end > totalRows {
			end = totalRows
		}
	}
	return Window{Start: start, End: end}
}

// RenderPlan is the rendering contract: the visible slice plus two spacer
// heights standing in for the skipped rows above and below, so total
// scrollable height and scroll position are preserved.
type RenderPlan struct {
	Window       Window `json:"window"`
	TopSpacer    int    `json:"topSpacer"`    // pixels
	BottomSpacer int    `json:"bottomSpacer"` // pixels
}

// Plan builds the render plan for the current window over totalRows rows.
func (c *Controller) Plan(totalRows int) RenderPlan {
	if totalRows < 0 {
		totalRows = 0
	}
	w := c.window
	if w.End > totalRows {
		w.End = totalRows
	}
	if w.Start > w.End {
		w.Start = w.End
	}
	return RenderPlan{
		Window:       w,
		TopSpacer:    w.Start * c.RowHeight,
		BottomSpacer: (totalRows - w.End) * c.RowHeight,
	}
}

// RenderFunc paints exactly the visible rows plus the plan's two spacers.
type RenderFunc func(visible []dataset.Row, languages []string, plan RenderPlan)

// Render slices the rows per the current window and invokes the callback.
func (c *Controller) Render(rows []dataset.Row, languages []string, fn RenderFunc) {
	if fn == nil {
		return
	}
	plan := c.Plan(len(rows))
	fn(rows[plan.Window.Start:plan.Window.End], languages, plan)
}
