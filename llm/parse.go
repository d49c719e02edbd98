package llm

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/types"
)

// ParseChoice extracts a scene code from a model answer. It accepts a bare
// code, a quoted or backticked code, a JSON object {"scene": "..."}, and a
// first line followed by commentary. "none" maps to director.NoScene.
// The code is returned as written; membership in the candidate list is
// checked by the director.
func ParseChoice(answer string) (string, error) {
	s := strings.TrimSpace(answer)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") {
		var obj struct {
			Scene *string `json:"scene"`
			Code  *string `json:"code"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return "", types.NewError(types.ErrChooserOutput, "malformed JSON answer").WithCause(err)
		}
		switch {
		case obj.Scene != nil:
			s = *obj.Scene
		case obj.Code != nil:
			s = *obj.Code
		default:
			return "", types.NewError(types.ErrChooserOutput, `JSON answer has no "scene" field`)
		}
	} else if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}

	s = strings.Trim(s, " \t`\"'*.")

	if s == "" || strings.EqualFold(s, director.NoScene) || strings.EqualFold(s, "null") {
		return director.NoScene, nil
	}
	if strings.ContainsAny(s, " \t") {
		return "", types.Errorf(types.ErrChooserOutput, "answer %q is not a scene code", truncate(s, 60))
	}
	return s, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
