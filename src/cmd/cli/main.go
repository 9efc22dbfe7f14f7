package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SampleBias/capture-coder/src/config"
	"github.com/SampleBias/capture-coder/src/llm"
	"github.com/SampleBias/capture-coder/src/prompts"
	"github.com/SampleBias/capture-coder/src/refine"
	"github.com/SampleBias/capture-coder/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	model      string
	rounds     int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"solve-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "solve-tool",
		Short:         "Solve a coding problem from a PNG screenshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the full iteration chain as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Override the configured model identifier")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "Override the automatic refinement round count when > 0")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(opts cliOptions) error {
	// Configure logging BEFORE any other operations so package logs
	// never pollute stdout consumers.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
		fmt.Fprintf(os.Stderr, "[verbose] Starting solve tool\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		APIKeyPathOverride: opts.apiKeyPath,
		ModelOverride:      opts.model,
		RoundsOverride:     opts.rounds,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Config loaded: Model=%s Rounds=%d\n", cfg.Model, cfg.RefineRounds)
		fmt.Fprintf(os.Stderr, "[verbose] Effective API key path: %s\n", cfg.APIKeyPath)
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY not found. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}

	if cfg.Model == "" {
		return fmt.Errorf("MODEL is required in .env file")
	}

	llm.Init(&llm.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Model client initialized\n")
	}

	return processSolve(cfg, opts)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		switch {
		case arg == "-file":
			normalized[i] = "--file"
		case strings.HasPrefix(arg, "-file="):
			normalized[i] = "--file=" + arg[len("-file="):]
		case arg == "-json":
			normalized[i] = "--json"
		case strings.HasPrefix(arg, "-json="):
			normalized[i] = "--json=" + arg[len("-json="):]
		case arg == "-verbose":
			normalized[i] = "--verbose"
		case strings.HasPrefix(arg, "-verbose="):
			normalized[i] = "--verbose=" + arg[len("-verbose="):]
		case arg == "-api-key-path":
			normalized[i] = "--api-key-path"
		case strings.HasPrefix(arg, "-api-key-path="):
			normalized[i] = "--api-key-path=" + arg[len("-api-key-path="):]
		case arg == "-model":
			normalized[i] = "--model"
		case strings.HasPrefix(arg, "-model="):
			normalized[i] = "--model=" + arg[len("-model="):]
		case arg == "-rounds":
			normalized[i] = "--rounds"
		case strings.HasPrefix(arg, "-rounds="):
			normalized[i] = "--rounds=" + arg[len("-rounds="):]
		}
	}

	return normalized
}

func validatePNG(data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[:8], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func processSolve(cfg *config.Config, opts cliOptions) error {
	var imageData []byte
	var err error

	if opts.filePath == "-" {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from stdin\n")
		}
		imageData, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from file: %s\n", opts.filePath)
		}
		imageData, err = os.ReadFile(opts.filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
		}
	}

	if len(imageData) == 0 {
		return fmt.Errorf("input file is empty")
	}
	if len(imageData) > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Read %d bytes\n", len(imageData))
	}

	if err := validatePNG(imageData); err != nil {
		return err
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] PNG validation passed\n")
	}

	return performSolve(cfg, imageData, opts.filePath, opts.jsonOutput, opts.verbose)
}

func performSolve(cfg *config.Config, imageData []byte, sourcePath string, jsonOutput bool, verbose bool) error {
	set := prompts.Resolve(cfg.PromptSystem, cfg.PromptInitial, cfg.PromptRefine, cfg.PromptOptimize, cfg.PromptFeedback)
	pipeline := refine.New(cfg.RefineRounds, time.Duration(cfg.RequestTimeoutSec)*time.Second, set)
	h := session.NewHistory()

	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Solving with %d automatic refinement rounds\n", cfg.RefineRounds)
	}

	startTime := time.Now()
	err := pipeline.Solve(context.Background(), h, imageData)
	elapsed := time.Since(startTime)

	if err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Solve failed after %v: %v\n", elapsed, err)
		}
		return fmt.Errorf("solve failed: %w", err)
	}

	cur, err := h.Current()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Solve completed in %v: %d iterations, final solution %d characters\n",
			elapsed, h.Len(), len(cur.Source))
	}

	return outputResult(h, cur.Source, sourcePath, elapsed, jsonOutput)
}

type IterationSummary struct {
	Seq       int    `json:"seq"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	CharCount int    `json:"character_count"`
}

type SolveResult struct {
	Solution   string             `json:"solution"`
	Source     string             `json:"source"`
	SessionID  string             `json:"session_id"`
	Timestamp  string             `json:"timestamp"`
	Duration   float64            `json:"duration_seconds"`
	CharCount  int                `json:"character_count"`
	Iterations []IterationSummary `json:"iterations"`
}

func outputResult(h *session.History, solution string, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		all := h.All()
		iters := make([]IterationSummary, len(all))
		for i, it := range all {
			iters[i] = IterationSummary{
				Seq:       it.Seq,
				Kind:      string(it.Kind),
				Text:      it.Source,
				CharCount: len(it.Source),
			}
		}

		result := SolveResult{
			Solution:   solution,
			Source:     sourcePath,
			SessionID:  h.ID(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Duration:   elapsed.Seconds(),
			CharCount:  len(solution),
			Iterations: iters,
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		fmt.Println(solution)
	}

	return nil
}
