package hotkey

import (
	"log"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding couples one chord with the action to run when it fires.
type Binding struct {
	Combo    string
	Callback func()
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

type chord struct {
	combo    string
	keys     []keyState
	callback func()
}

// registry tracks pressed state for every configured chord against a single
// stream of key events.
type registry struct {
	mu     sync.Mutex
	chords []*chord
}

func newRegistry(bindings []Binding) *registry {
	r := &registry{}
	for _, b := range bindings {
		var states []keyState
		valid := true
		for _, name := range parseHotkey(b.Combo) {
			raw := keyNameToRawcodes(name)
			if len(raw) == 0 {
				log.Printf("ERROR: Cannot map key '%s' in chord '%s', binding skipped", name, b.Combo)
				valid = false
				break
			}
			states = append(states, keyState{name: name, rawcodes: raw})
		}
		if !valid || len(states) == 0 {
			continue
		}
		r.chords = append(r.chords, &chord{combo: b.Combo, keys: states, callback: b.Callback})
	}
	return r
}

// keyDown records a press and returns the callbacks of every chord it
// completed. A fired chord's key states reset immediately.
func (r *registry) keyDown(rawcode uint16) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fired []func()
	for _, c := range r.chords {
		matched := false
		for i := range c.keys {
			for _, rc := range c.keys[i].rawcodes {
				if rc == rawcode {
					c.keys[i].pressed = true
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}

		all := true
		for i := range c.keys {
			if !c.keys[i].pressed {
				all = false
				break
			}
		}
		if all {
			log.Printf("Hotkey detected: %s", c.combo)
			for i := range c.keys {
				c.keys[i].pressed = false
			}
			if c.callback != nil {
				fired = append(fired, c.callback)
			}
		}
	}
	return fired
}

func (r *registry) keyUp(rawcode uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chords {
		for i := range c.keys {
			for _, rc := range c.keys[i].rawcodes {
				if rc == rawcode {
					c.keys[i].pressed = false
					break
				}
			}
		}
	}
}

// Listen registers every binding on one shared gohook event stream.
// Callbacks run on the hook goroutine and must hand real work off quickly,
// normally by posting an event.
func Listen(bindings []Binding) {
	r := newRegistry(bindings)
	if len(r.chords) == 0 {
		log.Printf("ERROR: No valid hotkey bindings configured")
		return
	}
	for _, c := range r.chords {
		log.Printf("Hotkey listener configured for: %s", c.combo)
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("PANIC in hotkey goroutine: %v", rec)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}

		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				for _, cb := range r.keyDown(ev.Rawcode) {
					cb()
				}
			case gohook.KeyUp:
				r.keyUp(ev.Rawcode)
			}
		}
		log.Printf("Hotkey event channel closed")
	}()
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		case "":
			// skip empty segments from malformed strings
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

// Windows virtual key codes for named keys. Modifiers list both the left
// and right variant.
var specialRawcodes = map[string][]uint16{
	"ctrl":      {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":       {164, 165}, // VK_LMENU, VK_RMENU
	"shift":     {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":       {91, 92},   // VK_LWIN, VK_RWIN
	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33}, // VK_PRIOR
	"pagedown":  {34}, // VK_NEXT
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

var keyAliases = map[string]string{
	"win":    "cmd",
	"super":  "cmd",
	"return": "enter",
	"escape": "esc",
	"del":    "delete",
	"ins":    "insert",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
// Returns a slice of rawcodes (both left and right variants for modifiers).
func keyNameToRawcodes(keyName string) []uint16 {
	name := strings.ToLower(strings.TrimSpace(keyName))
	if alias, ok := keyAliases[name]; ok {
		name = alias
	}
	if raw, ok := specialRawcodes[name]; ok {
		return raw
	}

	// Letters map to VK 0x41-0x5A, digits to 0x30-0x39
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c)}
		}
	}

	// Function keys F1-F24 map to VK 112-135
	if strings.HasPrefix(name, "f") && len(name) > 1 {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
