package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel stands in for the Ollama vision model client.
type fakeModel struct {
	response string
	err      error
	calls    int
	lastMsgs []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

// withFakeModel preloads the engine with a fake client so Recognize skips
// real initialization.
func withFakeModel(e *OllamaEngine, m llms.Model) *OllamaEngine {
	e.mu.Lock()
	e.llm = m
	e.loaded = true
	e.mu.Unlock()
	return e
}

func TestOllamaRecognizeJoinsParagraphFragments(t *testing.T) {
	model := &fakeModel{response: "First paragraph.\n\nSecond paragraph.\n\n\nThird."}
	eng := withFakeModel(NewOllamaEngine("test-model", "http://localhost:11434"), model)

	text, err := eng.Recognize(context.Background(), Input{Image: []byte("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.\nThird.", text)
}

func TestOllamaRecognizeSendsImageAndPrompt(t *testing.T) {
	model := &fakeModel{response: "hello"}
	eng := withFakeModel(NewOllamaEngine("test-model", "http://localhost:11434"), model)

	_, err := eng.Recognize(context.Background(), Input{Image: []byte{0x89, 0x50, 0x4e, 0x47}})
	require.NoError(t, err)

	require.Len(t, model.lastMsgs, 1)
	msg := model.lastMsgs[0]
	assert.Equal(t, llms.ChatMessageTypeHuman, msg.Role)
	require.Len(t, msg.Parts, 2)

	binary, ok := msg.Parts[0].(llms.BinaryContent)
	require.True(t, ok, "first part must be the image")
	assert.Equal(t, "image/png", binary.MIMEType)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, binary.Data)

	_, ok = msg.Parts[1].(llms.TextContent)
	assert.True(t, ok, "second part must be the prompt")
}

func TestOllamaRecognizeModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("model blew up")}
	eng := withFakeModel(NewOllamaEngine("test-model", "http://localhost:11434"), model)

	_, err := eng.Recognize(context.Background(), Input{Image: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model blew up")
	assert.Equal(t, 1, model.calls, "no retry on model failure")
}

func TestOllamaClientLoadsOnce(t *testing.T) {
	model := &fakeModel{response: "text"}
	eng := withFakeModel(NewOllamaEngine("test-model", "http://localhost:11434"), model)

	for i := 0; i < 3; i++ {
		_, err := eng.Recognize(context.Background(), Input{Image: []byte("x")})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, model.calls)

	// Close drops the loaded client so a later call would reinitialize.
	require.NoError(t, eng.Close())
	eng.mu.Lock()
	assert.False(t, eng.loaded)
	assert.Nil(t, eng.llm)
	eng.mu.Unlock()
}

func TestOllamaProbe(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		status  int
		models  []string
		wantErr bool
	}{
		{
			name:   "model present",
			model:  "llama3.2-vision",
			status: http.StatusOK,
			models: []string{"llama3.2-vision:latest", "qwen2.5:7b"},
		},
		{
			name:    "model absent",
			model:   "llama3.2-vision",
			status:  http.StatusOK,
			models:  []string{"qwen2.5:7b"},
			wantErr: true,
		},
		{
			name:    "server error",
			model:   "llama3.2-vision",
			status:  http.StatusInternalServerError,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tags", r.URL.Path)
				w.WriteHeader(tt.status)
				if tt.status == http.StatusOK {
					type model struct {
						Name string `json:"name"`
					}
					resp := struct {
						Models []model `json:"models"`
					}{}
					for _, name := range tt.models {
						resp.Models = append(resp.Models, model{Name: name})
					}
					require.NoError(t, json.NewEncoder(w).Encode(resp))
				}
			}))
			defer srv.Close()

			eng := NewOllamaEngine(tt.model, srv.URL)
			err := eng.Probe(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOllamaProbeUnreachableServer(t *testing.T) {
	eng := NewOllamaEngine("any", "http://127.0.0.1:1")
	assert.Error(t, eng.Probe(context.Background()))
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single block",
			in:   "one line",
			want: []string{"one line"},
		},
		{
			name: "blank line separated",
			in:   "para one\n\npara two",
			want: []string{"para one", "para two"},
		},
		{
			name: "windows line endings",
			in:   "a\r\n\r\nb",
			want: []string{"a", "b"},
		},
		{
			name: "empty fragments dropped",
			in:   "\n\n  \n\nx\n\n",
			want: []string{"x"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitParagraphs(tt.in))
		})
	}
}
