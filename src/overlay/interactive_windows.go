//go:build windows

package overlay

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"github.com/SampleBias/capture-coder/src/screenshot"
)

// InteractiveSelector lets the user drag a rectangle over a frozen copy
// of the virtual screen. ESC cancels the selection.
type InteractiveSelector struct{}

func platformSelector(display int) Selector {
	return InteractiveSelector{}
}

const (
	minSelectionSpan  = 5
	keyPollTimerID    = 1
	keyPollIntervalMs = 25
)

// The window procedure is a plain callback, so selection state lives at
// package level. Only one overlay can run at a time; Select is called
// from the single event-loop goroutine.
var sel struct {
	hwnd               win.HWND
	selecting          bool
	escapeDown         bool
	startX, startY     int32
	lastX, lastY       int32
	virtualX, virtualY int32
	frozen             *image.RGBA
	crossCursor        win.HCURSOR
	result             chan screenshot.Region
}

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32DLL.NewProc("GetAsyncKeyState")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")
)

func (InteractiveSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Region{}, false, err
	}

	// The message pump and the window must share one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	sel.virtualX = vx
	sel.virtualY = vy

	frozen, err := screenshot.Capture()
	if err != nil {
		return screenshot.Region{}, false, fmt.Errorf("freeze screen: %w", err)
	}
	sel.frozen = frozen
	sel.result = make(chan screenshot.Region, 1)
	sel.selecting = false
	sel.escapeDown = false
	sel.crossCursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))

	// Unique class name per invocation so a crashed run cannot block the next.
	className := syscall.StringToUTF16Ptr(fmt.Sprintf("CaptureOverlay_%d", time.Now().UnixNano()))
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       sel.crossCursor,
		HbrBackground: 0,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return screenshot.Region{}, false, fmt.Errorf("register overlay window class")
	}
	defer win.UnregisterClass(className)

	sel.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("Select problem area - drag to select, ESC cancels"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if sel.hwnd == 0 {
		return screenshot.Region{}, false, fmt.Errorf("create overlay window")
	}

	win.ShowWindow(sel.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(sel.hwnd)
	win.BringWindowToTop(sel.hwnd)
	win.SetFocus(sel.hwnd)
	win.UpdateWindow(sel.hwnd)

	// WM_KEYDOWN misses ESC when focus drifts; poll as a fallback.
	if win.SetTimer(sel.hwnd, keyPollTimerID, keyPollIntervalMs, 0) == 0 {
		log.Printf("overlay: keyboard poll timer unavailable, ESC needs window focus")
	}

	log.Printf("overlay: selection started, virtual screen %dx%d at (%d,%d)", vw, vh, vx, vy)

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case region := <-sel.result:
			win.DestroyWindow(sel.hwnd)
			sel.frozen = nil
			log.Printf("overlay: selected %dx%d at (%d,%d)", region.Width, region.Height, region.X, region.Y)
			return region, false, nil
		default:
		}
	}

	win.DestroyWindow(sel.hwnd)
	sel.frozen = nil
	log.Printf("overlay: selection cancelled")
	return screenshot.Region{}, true, nil
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		sel.selecting = true
		sel.startX = int32(win.LOWORD(uint32(lParam)))
		sel.startY = int32(win.HIWORD(uint32(lParam)))
		sel.lastX, sel.lastY = sel.startX, sel.startY
		win.InvalidateRect(hwnd, nil, false)
		win.UpdateWindow(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if sel.selecting {
			sel.lastX = int32(win.LOWORD(uint32(lParam)))
			sel.lastY = int32(win.HIWORD(uint32(lParam)))
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if !sel.selecting {
			return 0
		}
		win.ReleaseCapture()
		sel.selecting = false
		sel.lastX = int32(win.LOWORD(uint32(lParam)))
		sel.lastY = int32(win.HIWORD(uint32(lParam)))

		left := min(sel.startX, sel.lastX)
		top := min(sel.startY, sel.lastY)
		width := max(sel.startX, sel.lastX) - left
		height := max(sel.startY, sel.lastY) - top

		if width <= minSelectionSpan || height <= minSelectionSpan {
			log.Printf("overlay: selection %dx%d too small, keep dragging", width, height)
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
			return 0
		}

		sel.result <- screenshot.Region{
			X:      int(left + sel.virtualX),
			Y:      int(top + sel.virtualY),
			Width:  int(width),
			Height: int(height),
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		if sel.frozen != nil {
			blitFrozenScreen(hdc, sel.frozen)
		}
		drawHint(hdc)
		if sel.selecting {
			drawBand(hdc, sel.startX, sel.startY, sel.lastX, sel.lastY)
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if sel.crossCursor != 0 {
			win.SetCursor(sel.crossCursor)
		}
		return 1

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			sel.escapeDown = true
			win.PostQuitMessage(0)
		}
		return 0

	case win.WM_KEYUP, win.WM_SYSKEYUP:
		if wParam == win.VK_ESCAPE {
			sel.escapeDown = false
		}
		return 0

	case win.WM_NCHITTEST:
		// Everything is client area so the window sees all mouse events.
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, keyPollTimerID)
		// No PostQuitMessage here. The success path returns from Select as
		// soon as the region lands in the channel; a WM_QUIT left in the
		// thread queue would instantly cancel the next selection.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	pressed := s&0x0001 != 0
	if !sel.escapeDown && (down || pressed) {
		win.PostQuitMessage(0)
	}
	sel.escapeDown = down
}

func drawBand(hdc win.HDC, x0, y0, x1, y1 int32) {
	pen, _, _ := procCreatePen.Call(0, 3, 0x0000FF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	procRectangle.Call(uintptr(hdc),
		uintptr(min(x0, x1)), uintptr(min(y0, y1)),
		uintptr(max(x0, x1)), uintptr(max(y0, y1)))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func drawHint(hdc win.HDC) {
	hint := "Drag to select the problem area   ESC cancels"
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(hint), int32(len(hint)))
}

// blitFrozenScreen paints the captured screen into the window so the
// user selects over a still image rather than live content.
func blitFrozenScreen(hdc win.HDC, img *image.RGBA) {
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	bmi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down rows
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}

	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bmi.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	// At 32bpp the DWORD-aligned DIB stride is exactly width*4.
	stride := width * 4
	dst := unsafe.Slice((*byte)(pBits), stride*height)
	for y := 0; y < height; y++ {
		srcRow := img.Pix[y*img.Stride : y*img.Stride+stride]
		dstRow := dst[y*stride : (y+1)*stride]
		for x := 0; x < stride; x += 4 {
			dstRow[x] = srcRow[x+2]   // B
			dstRow[x+1] = srcRow[x+1] // G
			dstRow[x+2] = srcRow[x]   // R
			dstRow[x+3] = srcRow[x+3] // A
		}
	}

	win.BitBlt(hdc, 0, 0, int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}
