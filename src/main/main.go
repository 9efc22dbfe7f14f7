package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SampleBias/capture-coder/src/capture"
	"github.com/SampleBias/capture-coder/src/clipboard"
	"github.com/SampleBias/capture-coder/src/config"
	"github.com/SampleBias/capture-coder/src/eventloop"
	"github.com/SampleBias/capture-coder/src/events"
	"github.com/SampleBias/capture-coder/src/feedback"
	"github.com/SampleBias/capture-coder/src/hotkey"
	"github.com/SampleBias/capture-coder/src/logutil"
	"github.com/SampleBias/capture-coder/src/overlay"
	"github.com/SampleBias/capture-coder/src/prompts"
	"github.com/SampleBias/capture-coder/src/refine"
	"github.com/SampleBias/capture-coder/src/runtimeinit"
	"github.com/SampleBias/capture-coder/src/session"
	"github.com/SampleBias/capture-coder/src/singleinstance"
	"github.com/SampleBias/capture-coder/src/tray"
	"github.com/SampleBias/capture-coder/src/typer"
)

type mainOptions struct {
	onceSink   string // empty = resident daemon; "clipboard" or "stdout" = solve once and exit
	mode       string
	apiKeyPath string
	model      string
	rounds     int
}

// normalizeLegacyArgs maps single-dash long flags (-once, -mode) to the
// double-dash form cobra expects. Single-letter flags are left alone.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if i == 0 {
			out = append(out, a)
			continue
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && len(a) > 2 {
			out = append(out, "-"+a)
			continue
		}
		out = append(out, a)
	}
	return out
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture-coder",
		Short: "Resident screen-capture-to-solution daemon",
		Long: `capture-coder sits in the tray and waits for global hotkeys. A capture
chord grabs a region, window, or clipboard image containing a coding
problem, sends it through the model pipeline, and keeps the refined
solution ready for synthetic typing.

With --once it performs a single capture-and-solve and exits, delegating
to an already-running resident when one is listening.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("once") {
				return runOnce(opts)
			}
			return runResident(opts)
		},
	}

	cmd.Flags().StringVar(&opts.onceSink, "once", "", "solve one capture and exit; value picks the sink: clipboard or stdout")
	cmd.Flags().Lookup("once").NoOptDefVal = "clipboard"
	cmd.Flags().StringVar(&opts.mode, "mode", "area", "capture mode for --once: area, window or clipboard")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "path to a file containing the OpenRouter API key")
	cmd.Flags().StringVar(&opts.model, "model", "", "override the configured model identifier")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "override the automatic refinement round count when > 0")
	return cmd
}

func main() {
	// systray needs the main OS thread; lock it before anything spawns.
	runtime.LockOSThread()
	enableDPIAwareness()

	os.Args = normalizeLegacyArgs(os.Args)

	opts := &mainOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadOptions(opts *mainOptions) config.LoadOptions {
	return config.LoadOptions{
		APIKeyPathOverride: opts.apiKeyPath,
		ModelOverride:      opts.model,
		RoundsOverride:     opts.rounds,
	}
}

// runOnceClient is the slice of singleinstance.Client that the one-shot
// path needs; tests substitute a fake.
type runOnceClient interface {
	TrySolve(ctx context.Context, mode string, outputToStdout bool) (bool, string, error)
}

func runOnce(opts *mainOptions) error {
	if opts.onceSink != "clipboard" && opts.onceSink != "stdout" {
		return fmt.Errorf("unknown --once sink %q (want clipboard or stdout)", opts.onceSink)
	}
	toStdout := opts.onceSink == "stdout"
	mode, err := capture.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	// Load .env early so SINGLEINSTANCE_PORT_* are applied before the
	// delegation scan.
	_, _ = config.Load()

	var fallbackErr error
	handleRunOnceWithDelegation(os.Stdout, string(mode), toStdout, singleinstance.NewClient(), func() {
		fallbackErr = runOnceStandalone(opts, mode, toStdout)
	})
	return fallbackErr
}

// handleRunOnceWithDelegation asks a resident instance to solve on our
// behalf. No resident, or a delegation error, falls back to standalone.
// The capture itself is interactive, so no deadline is applied.
func handleRunOnceWithDelegation(out io.Writer, mode string, toStdout bool, client runOnceClient, fallback func()) {
	delegated, text, err := client.TrySolve(context.Background(), mode, toStdout)
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
		fallback()
		return
	}
	if !delegated {
		log.Printf("No resident detected, running standalone")
		fallback()
		return
	}
	log.Printf("Delegated to resident")
	if toStdout {
		fmt.Fprintln(out, text)
	}
}

// runOnceStandalone performs one capture-solve-emit cycle without a
// resident. The blocking error dialog is suppressed when piping to
// stdout so scripts see failures on stderr instead.
func runOnceStandalone(opts *mainOptions, mode capture.Mode, toStdout bool) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:            loadOptions(opts),
		SetupLogging:           logutil.Setup,
		ShowBlockingModelError: !toStdout,
	})
	if err != nil {
		return err
	}

	provider := capture.NewProvider(overlay.New(cfg.CaptureRect, cfg.CaptureDisplay), cfg.CaptureDisplay)
	set := prompts.Resolve(cfg.PromptSystem, cfg.PromptInitial, cfg.PromptRefine, cfg.PromptOptimize, cfg.PromptFeedback)
	pipeline := refine.New(cfg.RefineRounds, time.Duration(cfg.RequestTimeoutSec)*time.Second, set)

	ctx := context.Background()
	img, err := provider.Capture(ctx, capture.Request{Mode: mode})
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	h := session.NewHistory()
	if err := pipeline.Solve(ctx, h, img.PNG); err != nil {
		return fmt.Errorf("solve failed: %w", err)
	}
	cur, err := h.Current()
	if err != nil {
		return err
	}
	log.Printf("One-shot solve finished: session=%s iterations=%d", h.ID(), h.Len())

	if toStdout {
		fmt.Println(cur.Source)
		return nil
	}
	if err := clipboard.Write(cur.Source); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	log.Printf("Solution copied to clipboard (%d chars)", len(cur.Source))
	return nil
}

func runResident(opts *mainOptions) error {
	// Load .env early so SINGLEINSTANCE_PORT_* are available before the
	// delegation server claims its port.
	_, _ = config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Claiming the delegation port doubles as the single-instance check:
	// the port stays bound for the life of the resident.
	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("capture-coder is already running, or the delegation port is unavailable: %w", err)
	}
	defer srv.Close()
	log.Printf("Delegation server listening on port %d", srv.Port())

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:            loadOptions(opts),
		SetupLogging:           logutil.Setup,
		ShowBlockingModelError: true,
	})
	if err != nil {
		return err
	}
	logMonitorConfiguration()
	log.Printf("Hotkeys: area=%s window=%s type=%s fast=%s stop=%s refine=%s history=%s",
		cfg.Hotkeys.CaptureArea, cfg.Hotkeys.CaptureWindow,
		cfg.Hotkeys.TypeNatural, cfg.Hotkeys.TypeFast,
		cfg.Hotkeys.StopTyping, cfg.Hotkeys.Refine, cfg.Hotkeys.ShowHistory)

	loop := eventloop.New(cfg)

	tray.SetAbout(fmt.Sprintf("Delegation port: %d", srv.Port()))
	go loop.ServeDelegation(ctx, srv)

	registerHotkeys(cfg, loop)

	monitor := feedback.New(time.Duration(cfg.FeedbackPollMS)*time.Millisecond, func(note string) {
		loop.Post(events.Feedback{Content: note})
	})
	go monitor.Run(ctx)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-ch:
			log.Printf("Received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
		tray.Quit()
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	// Blocks until Quit. systray owns the main thread from here on.
	tray.Run(tray.Options{
		Tooltip:       "Capture Coder",
		OnShowHistory: func() { loop.Post(events.ShowHistory{}) },
		OnQuit:        cancel,
	})

	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Event loop stopped: %v", err)
	}
	log.Printf("capture-coder exited")
	return nil
}

// registerHotkeys binds the seven global chords. Callbacks only post
// events; all real work happens on the loop goroutine.
func registerHotkeys(cfg *config.Config, loop *eventloop.Loop) {
	hk := cfg.Hotkeys
	hotkey.Listen([]hotkey.Binding{
		{Combo: hk.CaptureArea, Callback: func() { loop.Post(events.CaptureRequested{Mode: capture.ModeArea}) }},
		{Combo: hk.CaptureWindow, Callback: func() { loop.Post(events.CaptureRequested{Mode: capture.ModeWindow}) }},
		{Combo: hk.TypeNatural, Callback: func() { loop.Post(events.TypeRequested{Mode: typer.ModeNatural}) }},
		{Combo: hk.TypeFast, Callback: func() { loop.Post(events.TypeRequested{Mode: typer.ModeFast}) }},
		{Combo: hk.StopTyping, Callback: func() { loop.Post(events.StopTyping{}) }},
		{Combo: hk.Refine, Callback: func() { loop.Post(events.RefineRequested{}) }},
		{Combo: hk.ShowHistory, Callback: func() { loop.Post(events.ShowHistory{}) }},
	})
}
