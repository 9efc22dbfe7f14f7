package overlay

import (
	"context"

	"github.com/SampleBias/capture-coder/src/config"
	"github.com/SampleBias/capture-coder/src/screenshot"
)

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and MUST be invoked only from the single event-loop goroutine.
// Returns (region, cancelled, error). If cancelled is true, region is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, bool, error)
}

// FuncSelector adapts a plain function to the Selector interface.
type FuncSelector func(ctx context.Context) (screenshot.Region, bool, error)

func (f FuncSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	return f(ctx)
}

// FixedSelector always yields one preconfigured rectangle.
type FixedSelector struct {
	Region screenshot.Region
}

func (s FixedSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	select {
	case <-ctx.Done():
		return screenshot.Region{}, false, ctx.Err()
	default:
		return s.Region, false, nil
	}
}

// DisplaySelector yields the full bounds of one display.
type DisplaySelector struct {
	Display int
}

func (s DisplaySelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	bounds, err := screenshot.DisplayBounds(s.Display)
	if err != nil {
		return screenshot.Region{}, false, err
	}
	select {
	case <-ctx.Done():
		return screenshot.Region{}, false, ctx.Err()
	default:
		return screenshot.FromRect(bounds), false, nil
	}
}

// New picks the area selector from configuration: a fixed CAPTURE_RECT wins,
// otherwise the platform selector (interactive drag on Windows, the
// configured display's full bounds elsewhere).
func New(rect *config.RectSpec, display int) Selector {
	if rect != nil {
		return FixedSelector{Region: screenshot.Region{X: rect.X, Y: rect.Y, Width: rect.W, Height: rect.H}}
	}
	return platformSelector(display)
}
