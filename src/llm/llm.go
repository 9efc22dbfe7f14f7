package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

var config *Config

func Init(cfg *Config) {
	config = cfg
}

// ServiceError is a failed provider call: the HTTP status (0 for transport
// or timeout failures) plus the provider's message.
type ServiceError struct {
	Code    int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("llm: service error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("llm: service error: %s", e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Request is one generation call. History entries are the model's prior
// solutions, oldest first; they travel as assistant turns so the model
// revises its own work instead of starting over. ImagePNG, when present,
// rides along with the instruction as an image part.
type Request struct {
	System      string
	Instruction string
	History     []string
	ImagePNG    []byte
}

// Generate performs a single completion call. There is no retry here; the
// caller owns failure policy and passes deadlines through ctx.
func Generate(ctx context.Context, req Request) (string, error) {
	if config == nil {
		return "", errors.New("LLM client not initialized")
	}
	if config.APIKey == "" {
		return "", errors.New("API key is required")
	}
	if config.Model == "" {
		return "", errors.New("model is required")
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, prior := range req.History {
		msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(prior))
	}
	if len(req.ImagePNG) > 0 {
		dataURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(req.ImagePNG))
		msgs = append(msgs, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Instruction),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}))
	} else {
		msgs = append(msgs, openai.UserMessage(req.Instruction))
	}

	client := newClient()
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(config.Model),
		Messages: msgs,
	})
	if err != nil {
		return "", wrapServiceError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Message: "no choices in API response"}
	}

	text := CleanSolutionText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &ServiceError{Message: "empty solution in API response"}
	}
	return text, nil
}

// Ping performs a minimal completion to verify credentials and connectivity.
func Ping(ctx context.Context) error {
	if config == nil {
		return errors.New("LLM client not initialized")
	}
	client := newClient()
	_, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		return wrapServiceError(err)
	}
	return nil
}

func newClient() openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return openai.NewClient(opts...)
}

func wrapServiceError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{Code: apiErr.StatusCode, Message: apiErr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Message: "request timed out", Err: err}
	}
	return &ServiceError{Message: err.Error(), Err: err}
}

// CleanSolutionText strips a surrounding markdown code fence when the model
// adds one despite instructions. Inner fences are left alone.
func CleanSolutionText(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	body := strings.TrimSuffix(t, "```")
	if i := strings.Index(body, "\n"); i >= 0 {
		// drop the opening fence line, language tag included
		body = body[i+1:]
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	return strings.TrimRight(body, "\n")
}
