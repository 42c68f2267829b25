package protocol

import (
	"encoding/json"
	"strings"

	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

// ModelResponse is the JSON object the model is instructed to emit for
// every generation pass.
type ModelResponse struct {
	Title     string               `json:"title"`
	Checklist []model.ProtocolStep `json:"checklist"`
	Citations []string             `json:"citations"`
}

// ParseResponse decodes a model reply into a ModelResponse. Models
// routinely wrap JSON in markdown fences or truncate the tail of the
// object, so the parser strips fences first and then attempts a
// best-effort repair of an unbalanced payload before giving up.
func ParseResponse(raw string) (*ModelResponse, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, appErr.ErrInvalid
	}

	var resp ModelResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return &resp, nil
	}
	repaired := repairTruncated(text)
	if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
		return nil, appErr.ErrInvalid
	}
	return &resp, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	return text[start:]
}

// repairTruncated closes dangling strings, arrays and objects on a
// payload cut off mid-stream. Only structural closers are appended;
// the content itself is left as-is.
func repairTruncated(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var sb strings.Builder
	sb.WriteString(text)
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	return sb.String()
}
