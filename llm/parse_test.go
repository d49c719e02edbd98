package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/types"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"bare code", "TENSION_RIVALRY", "TENSION_RIVALRY"},
		{"surrounding whitespace", "  HUMOR_JOKE \n", "HUMOR_JOKE"},
		{"quoted", `"HUMOR_JOKE"`, "HUMOR_JOKE"},
		{"backticked", "`HUMOR_JOKE`", "HUMOR_JOKE"},
		{"bold with period", "**HUMOR_JOKE**.", "HUMOR_JOKE"},
		{"commentary on later lines", "DEBATE_OPEN\nIt fits the mood.", "DEBATE_OPEN"},
		{"json scene", `{"scene": "VULN_CONFESSION"}`, "VULN_CONFESSION"},
		{"json code", `{"code": "VULN_CONFESSION"}`, "VULN_CONFESSION"},
		{"fenced json", "```json\n{\"scene\": \"DEBATE_OPEN\"}\n```", "DEBATE_OPEN"},
		{"none", "none", director.NoScene},
		{"none uppercase", "NONE", director.NoScene},
		{"null", "null", director.NoScene},
		{"empty", "   ", director.NoScene},
		{"json none", `{"scene": "none"}`, director.NoScene},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChoice(tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChoice_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"sentence", "I would pick the rivalry scene"},
		{"malformed json", `{"scene": `},
		{"json without scene", `{"answer": "HUMOR_JOKE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChoice(tt.answer)
			require.Error(t, err)
			assert.Equal(t, types.ErrChooserOutput, types.GetErrorCode(err))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "ñá...", truncate("ñáé", 2))
}
