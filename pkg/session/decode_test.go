package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
)

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "structured content unwrapped",
			raw:  `{"structuredContent":{"result":[{"path":"a.go"}]},"content":[{"type":"text","text":"ignored"}]}`,
			want: []any{map[string]any{"path": "a.go"}},
		},
		{
			name: "structured content with several keys kept",
			raw:  `{"structuredContent":{"result":1,"extra":2}}`,
			want: map[string]any{"result": float64(1), "extra": float64(2)},
		},
		{
			name: "null structured content falls back to text",
			raw:  `{"structuredContent":null,"content":[{"type":"text","text":"hello"}]}`,
			want: "hello",
		},
		{
			name: "single JSON fragment decoded and unwrapped",
			raw:  `{"content":[{"type":"text","text":"{\"result\": [\"a\", \"b\"]}"}]}`,
			want: []any{"a", "b"},
		},
		{
			name: "single non-JSON fragment returned raw",
			raw:  `{"content":[{"type":"text","text":"plain words"}]}`,
			want: "plain words",
		},
		{
			name: "multiple fragments",
			raw:  `{"content":[{"type":"text","text":"one"},{"type":"image","data":"x"},{"type":"text","text":"two"}]}`,
			want: []string{"one", "two"},
		},
		{
			name: "empty content",
			raw:  `{"content":[]}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResult("tool", []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeResultIsError(t *testing.T) {
	_, err := DecodeResult("code_search", []byte(`{"isError":true,"content":[{"type":"text","text":"bad pattern"}]}`))
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeToolCallError))
	assert.Equal(t, "bad pattern", err.Error())
	assert.Equal(t, "code_search", err.(mcperrors.MCPError).Context().Tool)
}

func TestDecodeResultMalformed(t *testing.T) {
	_, err := DecodeResult("x", []byte(`not json`))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInternalError))
}
