package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoJSON is returned when a model answer holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model answer")

// ExtractJSON isolates the JSON object in a model answer: code fences are
// removed and the text between the first '{' and the last '}' is returned.
func ExtractJSON(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// decode extracts and unmarshals the JSON object of text into out, a non nil
// pointer. out is only written when the whole object decodes.
func decode(text string, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &json.InvalidUnmarshalError{Type: reflect.TypeOf(out)}
	}
	obj, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	fresh := reflect.New(rv.Type().Elem())
	if err := json.Unmarshal([]byte(obj), fresh.Interface()); err != nil {
		return fmt.Errorf("malformed JSON in model answer: %w", err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}
