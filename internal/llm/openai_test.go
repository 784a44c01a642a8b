package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/steps"
)

func newServer(t *testing.T, status int, response string, inspect func(body gjson.Result)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if inspect != nil {
			inspect(gjson.ParseBytes(body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Text(t *testing.T) {
	srv := newServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"Paris"}}]}`,
		func(body gjson.Result) {
			assert.Equal(t, "gpt-test", body.Get("model").String())
			assert.Equal(t, "user", body.Get("messages.0.role").String())
			assert.Equal(t, "Capital of France?", body.Get("messages.0.content").String())
			assert.False(t, body.Get("tools").Exists())
		})

	svc := NewOpenAI("key", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	got, err := svc.Complete(context.Background(), steps.CompletionRequest{
		Model:    "gpt-test",
		Messages: []steps.Message{{Role: "user", Content: "Capital of France?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &steps.Completion{Text: "Paris"}, got)
}

func TestOpenAI_ToolCall(t *testing.T) {
	srv := newServer(t, http.StatusOK,
		`{"choices":[{"message":{"tool_calls":[{"type":"function","function":{"name":"extract","arguments":"{\"city\":\"Paris\",\"population\":2100000}"}}]}}]}`,
		func(body gjson.Result) {
			assert.Equal(t, DefaultModel, body.Get("model").String())
			assert.Equal(t, "extract", body.Get("tools.0.function.name").String())
			assert.Equal(t, "object", body.Get("tools.0.function.parameters.type").String())
			assert.Equal(t, "extract", body.Get("tool_choice.function.name").String())
		})

	svc := NewOpenAI("key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	got, err := svc.Complete(context.Background(), steps.CompletionRequest{
		Messages: []steps.Message{{Role: "user", Content: "Paris facts"}},
		Tool: &domain.ToolSpec{
			Name:       "extract",
			Parameters: map[string]any{"type": "object"},
		},
	})
	require.NoError(t, err)
	assert.True(t, got.ToolCalled)
	assert.Equal(t, map[string]any{"city": "Paris", "population": float64(2100000)}, got.Arguments)
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "api error",
			status:   http.StatusUnauthorized,
			response: `{"error":{"message":"invalid api key"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
				assert.Equal(t, "invalid api key", apiErr.Message)
			},
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			response: `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoChoices)
			},
		},
		{
			name:     "bad arguments",
			status:   http.StatusOK,
			response: `{"choices":[{"message":{"tool_calls":[{"function":{"name":"f","arguments":"[1]"}}]}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidArguments)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.response, nil)
			svc := NewOpenAI("key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			_, err := svc.Complete(context.Background(), steps.CompletionRequest{
				Messages: []steps.Message{{Role: "user", Content: "hi"}},
			})
			tt.check(t, err)
		})
	}
}

func TestOpenAI_ServiceCallStep(t *testing.T) {
	srv := newServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"short summary"}}]}`,
		func(body gjson.Result) {
			assert.Equal(t, "system", body.Get("messages.0.role").String())
			assert.Equal(t, "Summarize: long text", body.Get("messages.1.content").String())
		})

	d, err := steps.DefaultDispatcher(steps.Capabilities{
		Services: map[string]steps.CompletionService{
			"openai": NewOpenAI("key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client())),
		},
	})
	require.NoError(t, err)

	step := &domain.Step{Name: "summarize", Type: domain.StepTypeServiceCall, Outputs: []string{"summary"}}
	resp, err := d.Dispatch(context.Background(), steps.NewRequest(step, map[string]any{
		"system": "You are concise.",
		"prompt": "Summarize: long text",
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "short summary"}, resp.Outputs)
}
