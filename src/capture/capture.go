package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SampleBias/capture-coder/src/clipboard"
	"github.com/SampleBias/capture-coder/src/overlay"
	"github.com/SampleBias/capture-coder/src/screenshot"
)

// Mode selects where the problem statement comes from.
type Mode string

const (
	ModeArea      Mode = "area"
	ModeWindow    Mode = "window"
	ModeClipboard Mode = "clipboard"
)

var (
	ErrSelectionCancelled = errors.New("capture: selection cancelled")
	ErrNoImage            = errors.New("capture: clipboard holds no image")
	ErrUnknownMode        = errors.New("capture: unknown mode")
)

// ParseMode normalizes a mode string from a flag or a delegation request.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeArea:
		return ModeArea, nil
	case ModeWindow:
		return ModeWindow, nil
	case ModeClipboard:
		return ModeClipboard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request describes one capture. It is consumed by exactly one attempt;
// retries build a fresh request.
type Request struct {
	Mode Mode
}

// Image is a captured problem statement, always PNG-encoded. Treated as
// immutable once produced.
type Image struct {
	PNG []byte
}

// Provider turns a Request into an Image. The function fields are seams:
// production wiring installs the real screen and clipboard facilities,
// tests substitute fakes.
type Provider struct {
	AreaSelector overlay.Selector
	WindowBounds func() (screenshot.Region, error)
	GrabRegion   func(screenshot.Region) ([]byte, error)
	ClipboardPNG func() ([]byte, error)
}

// NewProvider wires the default facilities. Window bounds fall back to the
// configured display until a platform window tracker is available.
func NewProvider(area overlay.Selector, display int) *Provider {
	return &Provider{
		AreaSelector: area,
		WindowBounds: func() (screenshot.Region, error) {
			b, err := screenshot.DisplayBounds(display)
			if err != nil {
				return screenshot.Region{}, err
			}
			return screenshot.FromRect(b), nil
		},
		GrabRegion:   screenshot.CaptureRegion,
		ClipboardPNG: clipboard.ReadImage,
	}
}

// Capture resolves the request into a PNG image. Every failure path returns
// a capture error; the caller decides how to surface it.
func (p *Provider) Capture(ctx context.Context, req Request) (Image, error) {
	switch req.Mode {
	case ModeArea:
		region, cancelled, err := p.AreaSelector.Select(ctx)
		if err != nil {
			return Image{}, fmt.Errorf("capture area: %w", err)
		}
		if cancelled {
			return Image{}, ErrSelectionCancelled
		}
		return p.grab(region)

	case ModeWindow:
		region, err := p.WindowBounds()
		if err != nil {
			return Image{}, fmt.Errorf("capture window: %w", err)
		}
		return p.grab(region)

	case ModeClipboard:
		png, err := p.ClipboardPNG()
		if err != nil {
			if errors.Is(err, clipboard.ErrNoImage) {
				return Image{}, ErrNoImage
			}
			return Image{}, fmt.Errorf("capture clipboard: %w", err)
		}
		return Image{PNG: png}, nil
	}
	return Image{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
}

func (p *Provider) grab(region screenshot.Region) (Image, error) {
	png, err := p.GrabRegion(region)
	if err != nil {
		return Image{}, fmt.Errorf("grab region: %w", err)
	}
	return Image{PNG: png}, nil
}
