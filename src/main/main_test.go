package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"capture-coder", "-once", "-api-key-path", "/tmp/key"},
			out:  []string{"capture-coder", "--once", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"capture-coder", "-once=stdout", "-mode=window"},
			out:  []string{"capture-coder", "--once=stdout", "--mode=window"},
		},
		{
			name: "Leaves double dash flags and values unchanged",
			in:   []string{"capture-coder", "--once", "--mode", "window"},
			out:  []string{"capture-coder", "--once", "--mode", "window"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--once", "--mode", "window", "--api-key-path", "/tmp/key"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.onceSink != "clipboard" {
		t.Fatalf("Expected bare --once to select the clipboard sink, got %q", opts.onceSink)
	}
	if opts.mode != "window" {
		t.Fatalf("Expected mode=window, got %q", opts.mode)
	}
	if opts.apiKeyPath != "/tmp/key" {
		t.Fatalf("Expected apiKeyPath=/tmp/key, got %q", opts.apiKeyPath)
	}
}

func TestNewRootCmdOnceEqualsStdout(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--once=stdout"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.onceSink != "stdout" {
		t.Fatalf("Expected stdout sink, got %q", opts.onceSink)
	}
	if opts.mode != "area" {
		t.Fatalf("Expected default mode=area, got %q", opts.mode)
	}
}

type fakeClient struct {
	delegated bool
	text      string
	err       error
	called    bool
	gotMode   string
	gotStdout bool
}

func (f *fakeClient) TrySolve(ctx context.Context, mode string, outputToStdout bool) (bool, string, error) {
	f.called = true
	f.gotMode = mode
	f.gotStdout = outputToStdout
	return f.delegated, f.text, f.err
}

func TestHandleRunOnceWithDelegation_DelegatedStdout(t *testing.T) {
	client := &fakeClient{delegated: true, text: "def solve():\n    return 42"}
	fallbackCalled := false
	var out bytes.Buffer

	handleRunOnceWithDelegation(&out, "window", true, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TrySolve to be called")
	}
	if client.gotMode != "window" || !client.gotStdout {
		t.Fatalf("Expected mode=window stdout=true, got mode=%q stdout=%v", client.gotMode, client.gotStdout)
	}
	if fallbackCalled {
		t.Fatal("Did not expect fallback when delegation succeeds")
	}
	if out.String() != "def solve():\n    return 42\n" {
		t.Fatalf("Unexpected stdout payload: %q", out.String())
	}
}

func TestHandleRunOnceWithDelegation_DelegatedClipboardPrintsNothing(t *testing.T) {
	client := &fakeClient{delegated: true}
	var out bytes.Buffer

	handleRunOnceWithDelegation(&out, "area", false, client, func() {
		t.Fatal("Did not expect fallback when delegation succeeds")
	})

	if out.Len() != 0 {
		t.Fatalf("Clipboard sink must not write to stdout, got %q", out.String())
	}
}

func TestHandleRunOnceWithDelegation_NoResidentFallback(t *testing.T) {
	client := &fakeClient{delegated: false}
	fallbackCalled := false
	var out bytes.Buffer

	handleRunOnceWithDelegation(&out, "area", false, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TrySolve to be called")
	}
	if !fallbackCalled {
		t.Fatal("Expected fallback when no resident is listening")
	}
}

func TestHandleRunOnceWithDelegation_DelegationErrorFallback(t *testing.T) {
	client := &fakeClient{err: errors.New("busy, please retry")}
	fallbackCalled := false
	var out bytes.Buffer

	handleRunOnceWithDelegation(&out, "area", false, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TrySolve to be called")
	}
	if !fallbackCalled {
		t.Fatal("Expected fallback when delegation returns an error")
	}
}
