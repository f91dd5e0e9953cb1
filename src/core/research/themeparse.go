package research

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParseThemes decodes an LLM answer into Themes. When the whole answer is not a JSON object the text
// between the first '{' and the last '}' is tried as well.
func ParseThemes(content string) (Themes, error) {
	content = strings.TrimSpace(content)

	var themes Themes
	if err := json.Unmarshal([]byte(content), &themes); err == nil && themes != nil {
		return themes, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		themes = nil
		if err := json.Unmarshal([]byte(content[start:end+1]), &themes); err == nil && themes != nil {
			return themes, nil
		}
	}

	return nil, &ThemeParseError{Raw: content}
}

// ThemeErrorObject renders a theme failure the way it is embedded in API payloads:
// {"error": ...} plus "raw_output" when the model answered with something that is not JSON.
func ThemeErrorObject(err error, parseMessage string) Themes {
	var parseErr *ThemeParseError
	if errors.As(err, &parseErr) {
		return Themes{"error": parseMessage, "raw_output": parseErr.Raw}
	}
	return Themes{"error": err.Error()}
}
