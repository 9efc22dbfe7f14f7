package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var mu sync.Mutex

// ErrNoImage is returned by ReadImage when the clipboard holds no image data.
var ErrNoImage = errors.New("clipboard: no image available")

func Init() error {
	return clipboard.Init()
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// ReadText returns the current text contents, empty when the clipboard holds
// none. The feedback poller calls this from its own goroutine.
func ReadText() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// ReadImage returns the current image contents as PNG bytes.
func ReadImage() ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	data := clipboard.Read(clipboard.FmtImage)
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
