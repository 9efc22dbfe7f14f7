package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	EnvPathEnvVar     = "CAPTURE_CODER_ENV"
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
)

type LoadOptions struct {
	APIKeyPathOverride string
	ModelOverride      string
	RoundsOverride     int
}

// Hotkeys holds the seven global chords. Values are parsed by the hotkey
// package; format is modifier+...+key, e.g. "Ctrl+Shift+C".
type Hotkeys struct {
	CaptureArea   string
	CaptureWindow string
	TypeNatural   string
	TypeFast      string
	StopTyping    string
	Refine        string
	ShowHistory   string
}

// RectSpec is a fixed capture rectangle from CAPTURE_RECT ("x,y,w,h").
type RectSpec struct {
	X, Y, W, H int
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	BaseURL           string
	EnableFileLogging bool

	RefineRounds      int
	RequestTimeoutSec int
	FeedbackPollMS    int

	TypeNaturalDelayMS  int
	TypeNaturalJitterMS int
	TypeFastDelayMS     int

	Hotkeys Hotkeys

	CaptureDisplay int
	CaptureRect    *RectSpec

	// Prompt template overrides; empty selects the built-in template.
	PromptSystem   string
	PromptInitial  string
	PromptRefine   string
	PromptOptimize string
	PromptFeedback string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use CAPTURE_CODER_ENV env var as a path to a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	model := os.Getenv("MODEL")
	if override := strings.TrimSpace(opts.ModelOverride); override != "" {
		model = override
	}

	rounds := intEnv("REFINE_ROUNDS", 2, 0)
	if opts.RoundsOverride > 0 {
		rounds = opts.RoundsOverride
	}

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             model,
		BaseURL:           getEnvWithDefault("BASE_URL", DefaultBaseURL),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",

		RefineRounds:      rounds,
		RequestTimeoutSec: intEnv("REQUEST_TIMEOUT_SEC", 90, 1),
		FeedbackPollMS:    intEnv("FEEDBACK_POLL_MS", 500, 50),

		TypeNaturalDelayMS:  intEnv("TYPE_NATURAL_DELAY_MS", 60, 1),
		TypeNaturalJitterMS: intEnv("TYPE_NATURAL_JITTER_MS", 40, 0),
		TypeFastDelayMS:     intEnv("TYPE_FAST_DELAY_MS", 5, 0),

		Hotkeys: Hotkeys{
			CaptureArea:   getEnvWithDefault("HOTKEY_CAPTURE_AREA", "Ctrl+Shift+C"),
			CaptureWindow: getEnvWithDefault("HOTKEY_CAPTURE_WINDOW", "Ctrl+Shift+W"),
			TypeNatural:   getEnvWithDefault("HOTKEY_TYPE_NATURAL", "Ctrl+Shift+V"),
			TypeFast:      getEnvWithDefault("HOTKEY_TYPE_FAST", "Ctrl+Shift+F"),
			StopTyping:    getEnvWithDefault("HOTKEY_STOP_TYPING", "Ctrl+Shift+X"),
			Refine:        getEnvWithDefault("HOTKEY_REFINE", "Ctrl+Shift+R"),
			ShowHistory:   getEnvWithDefault("HOTKEY_SHOW_HISTORY", "Ctrl+Shift+H"),
		},

		CaptureDisplay: intEnv("CAPTURE_DISPLAY", 0, 0),
		CaptureRect:    parseRectSpec(os.Getenv("CAPTURE_RECT")),

		PromptSystem:   os.Getenv("PROMPT_SYSTEM"),
		PromptInitial:  os.Getenv("PROMPT_INITIAL"),
		PromptRefine:   os.Getenv("PROMPT_REFINE"),
		PromptOptimize: os.Getenv("PROMPT_OPTIMIZE"),
		PromptFeedback: os.Getenv("PROMPT_FEEDBACK"),
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// intEnv parses key as an integer, falling back to def when unset,
// malformed, or below min.
func intEnv(key string, def, min int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return def
	}
	return n
}

// parseRectSpec accepts "x,y,w,h". Width and height must be positive;
// anything else yields nil (no fixed rectangle configured).
func parseRectSpec(v string) *RectSpec {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	if nums[2] <= 0 || nums[3] <= 0 {
		return nil
	}
	return &RectSpec{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}
}
