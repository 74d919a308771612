package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	// DefaultOllamaModel is the vision model used when none is configured.
	DefaultOllamaModel = "llama3.2-vision"
	// DefaultOllamaServerURL is the standard local Ollama endpoint.
	DefaultOllamaServerURL = "http://localhost:11434"

	defaultMaxTokens = 4096
	probeTimeout     = 3 * time.Second
)

// defaultVisionPrompt steers the model toward plain transcription.
const defaultVisionPrompt = "Transcribe all text visible in this image. " +
	"Output only the transcribed text, preserving the reading order. " +
	"Do not add commentary, descriptions, or formatting of your own."

// OllamaEngine performs recognition with a vision model served by a local
// Ollama instance. The model client loads lazily on first use because
// initialization pulls the model into memory; once loaded it lives for the
// lifetime of the engine instance until Close.
type OllamaEngine struct {
	Model     string
	ServerURL string
	Prompt    string
	MaxTokens int

	mu      sync.Mutex
	llm     llms.Model
	initErr error
	loaded  bool
}

// NewOllamaEngine constructs the neural engine. Empty arguments fall back to
// the package defaults.
func NewOllamaEngine(model, serverURL string) *OllamaEngine {
	if model == "" {
		model = DefaultOllamaModel
	}
	if serverURL == "" {
		serverURL = DefaultOllamaServerURL
	}
	return &OllamaEngine{
		Model:     model,
		ServerURL: serverURL,
		MaxTokens: defaultMaxTokens,
	}
}

func (e *OllamaEngine) ID() EngineID { return EngineOllama }

func (e *OllamaEngine) Info() string { return "Deep learning, good for complex layouts" }

// Probe checks that the Ollama server answers and that the configured model
// appears in its tag list.
func (e *OllamaEngine) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.ServerURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama server returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tag list: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == e.Model || strings.TrimSuffix(m.Name, ":latest") == e.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q not found on ollama server", e.Model)
}

// client returns the lazily constructed model client. Initialization runs at
// most once per engine instance while it stays open.
func (e *OllamaEngine) client() (llms.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		e.llm, e.initErr = ollama.New(
			ollama.WithModel(e.Model),
			ollama.WithServerURL(e.ServerURL),
		)
		e.loaded = true
	}
	return e.llm, e.initErr
}

// Recognize submits the image with a transcription prompt and returns the
// model's paragraph fragments joined by single newlines, in response order.
func (e *OllamaEngine) Recognize(ctx context.Context, in Input) (string, error) {
	llm, err := e.client()
	if err != nil {
		return "", fmt.Errorf("initialize ollama client: %w", err)
	}

	prompt := e.Prompt
	if prompt == "" {
		prompt = defaultVisionPrompt
	}
	maxTokens := e.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	completion, err := llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/png", in.Image),
				llms.TextPart(prompt),
			},
			Role: llms.ChatMessageTypeHuman,
		},
	}, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", e.Model)
	}

	return strings.Join(splitParagraphs(completion.Choices[0].Content), "\n"), nil
}

// Close drops the loaded model client; a later Recognize loads it again.
// Not safe to call concurrently with Recognize.
func (e *OllamaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.llm = nil
	e.initErr = nil
	e.loaded = false
	return nil
}

// splitParagraphs breaks model output into paragraph fragments on blank-line
// boundaries, dropping empty fragments.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var fragments []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			fragments = append(fragments, p)
		}
	}
	return fragments
}
