package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SampleBias/capture-coder/src/config"
)

// writeProblemPNG renders a small valid PNG to stand in for a problem
// screenshot.
func writeProblemPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "problem.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test PNG: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test PNG: %v", err)
	}
	return path
}

func TestCLIWithProblemImage(t *testing.T) {
	// Load configuration to check if an API key is available.
	cfg, err := config.Load()
	if err != nil || cfg.APIKey == "" {
		t.Skip("Skipping integration test: no API key configured")
	}

	binaryPath := filepath.Join(t.TempDir(), "solve-tool")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build solve tool: %v\n%s", err, output)
	}

	problemPath := writeProblemPNG(t)

	t.Run("PlainTextOutput", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "-file", problemPath)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			t.Fatalf("Command failed: %v\nStderr: %s", err, stderr.String())
		}
		if stdout.Len() == 0 {
			t.Error("Expected a solution on stdout, got empty output")
		}
		if stderr.Len() > 0 {
			t.Errorf("Expected empty stderr without -v flag, got: %s", stderr.String())
		}
	})

	t.Run("JSONOutput", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "-file", problemPath, "-json")
		output, err := cmd.Output()
		if err != nil {
			t.Fatalf("Command failed: %v", err)
		}

		var result SolveResult
		if err := json.Unmarshal(output, &result); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if result.Solution == "" {
			t.Error("JSON result missing solution")
		}
		if result.SessionID == "" {
			t.Error("JSON result missing session_id")
		}
		if result.Source != problemPath {
			t.Errorf("Expected source=%s, got %s", problemPath, result.Source)
		}
		if len(result.Iterations) == 0 {
			t.Error("Expected at least the initial iteration in the chain")
		}
		for i, it := range result.Iterations {
			if it.Seq != i {
				t.Errorf("Iteration %d has seq %d", i, it.Seq)
			}
		}
	})

	t.Run("VerboseMode", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "-file", problemPath, "-v")
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		_ = cmd.Run()

		if !strings.Contains(stderr.String(), "[verbose]") {
			t.Error("Expected verbose output in stderr")
		}
		if strings.Contains(stdout.String(), "[verbose]") {
			t.Error("Found [verbose] in stdout, should only be in stderr")
		}
	})

	t.Run("StdinInput", func(t *testing.T) {
		imageData, _ := os.ReadFile(problemPath)
		cmd := exec.Command(binaryPath, "-file", "-")
		cmd.Stdin = bytes.NewReader(imageData)

		output, err := cmd.Output()
		if err != nil {
			t.Fatalf("Stdin test failed: %v", err)
		}
		if len(output) == 0 {
			t.Error("Expected output from stdin input")
		}
	})

	t.Run("ErrorToStderr", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "-file", "/nonexistent/problem.png")
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err == nil {
			t.Error("Expected command to fail for non-existent file")
		}
		if stdout.Len() > 0 {
			t.Errorf("Expected empty stdout on error, got: %s", stdout.String())
		}
		if !strings.Contains(stderr.String(), "Error:") {
			t.Error("Expected error message in stderr")
		}
	})
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name:    "ValidPNG",
			data:    []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00},
			wantErr: false,
		},
		{
			name:    "InvalidMagic",
			data:    []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
			wantErr: true,
		},
		{
			name:    "TooShort",
			data:    []byte{0x89, 'P', 'N', 'G'},
			wantErr: true,
		},
		{
			name:    "Empty",
			data:    []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes single dash long flags",
			in:   []string{"solve-tool", "-file", "a.png", "-json", "-rounds", "3"},
			out:  []string{"solve-tool", "--file", "a.png", "--json", "--rounds", "3"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"solve-tool", "-file=a.png", "-model=qwen", "-verbose=true"},
			out:  []string{"solve-tool", "--file=a.png", "--model=qwen", "--verbose=true"},
		},
		{
			name: "Leaves double dash flags unchanged",
			in:   []string{"solve-tool", "--file", "a.png", "--json"},
			out:  []string{"solve-tool", "--file", "a.png", "--json"},
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
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--file", "a.png", "--json", "--model", "qwen", "--rounds", "4"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.filePath != "a.png" {
		t.Fatalf("Expected filePath=a.png, got %q", opts.filePath)
	}
	if !opts.jsonOutput {
		t.Fatal("Expected jsonOutput=true")
	}
	if opts.model != "qwen" {
		t.Fatalf("Expected model=qwen, got %q", opts.model)
	}
	if opts.rounds != 4 {
		t.Fatalf("Expected rounds=4, got %d", opts.rounds)
	}
}

func TestRootCmdRequiresFile(t *testing.T) {
	err := runWithArgs([]string{"solve-tool"})
	if err == nil {
		t.Fatal("Expected an error when --file is missing")
	}
	if !strings.Contains(err.Error(), "file") {
		t.Fatalf("Expected the error to name the missing flag, got: %v", err)
	}
}
