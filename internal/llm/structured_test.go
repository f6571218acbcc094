package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

type verdict struct {
	HasError   bool   `json:"has_error"`
	Warning    string `json:"warning"`
	Suggestion string `json:"suggestion"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    verdict
		wantErr bool
	}{
		{"plain", `{"has_error":true,"warning":"w","suggestion":"s"}`, verdict{true, "w", "s"}, false},
		{"fenced", "```json\n{\"has_error\":false}\n```", verdict{}, false},
		{"bare fence", "```\n{\"has_error\":false,\"warning\":\"\"}\n```", verdict{}, false},
		{"single line fence", "```json {\"has_error\": false}```", verdict{}, false},
		{"single line bare fence", "```{\"has_error\":true}```", verdict{HasError: true}, false},
		{"upper case tag", "```JSON\n{\"has_error\":true}\n```", verdict{HasError: true}, false},
		{"missing key", `{"warning":"w"}`, verdict{}, true},
		{"null key", `{"has_error":null}`, verdict{}, true},
		{"prose", `Sure! The switch looks fine.`, verdict{}, true},
		{"wrong type", `{"has_error":"yes"}`, verdict{}, true},
		{"array", `[1,2]`, verdict{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON[verdict](tt.raw, "has_error")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrReasoningParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fixedCompleter struct {
	out string
	err error
	req Request
}

func (f *fixedCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.req = req
	return f.out, f.err
}

func TestCompleteJSON(t *testing.T) {
	c := &fixedCompleter{out: `{"has_error":false}`}
	got, err := CompleteJSON[verdict](context.Background(), c, Request{Prompt: "p"}, "has_error")
	require.NoError(t, err)
	assert.False(t, got.HasError)
	assert.True(t, c.req.JSON, "JSON mode should be forced")

	boom := errors.New("boom")
	c = &fixedCompleter{err: boom}
	_, err = CompleteJSON[verdict](context.Background(), c, Request{Prompt: "p"})
	assert.ErrorIs(t, err, boom)
}

func TestCompleteJSONWithFakeLLM(t *testing.T) {
	m := NewFromLLM(fake.NewFakeLLM([]string{
		"```json\n{\"has_error\": true, \"warning\": \"switch-7b is in Pod_7\", \"suggestion\": \"use Pod_7\"}\n```",
		`{"warning": "no verdict"}`,
	}), "fake")

	got, err := CompleteJSON[verdict](context.Background(), m, Request{Prompt: "check"}, "has_error")
	require.NoError(t, err)
	assert.Equal(t, verdict{true, "switch-7b is in Pod_7", "use Pod_7"}, got)

	_, err = CompleteJSON[verdict](context.Background(), m, Request{Prompt: "check"}, "has_error")
	assert.ErrorIs(t, err, ErrReasoningParse)
}
