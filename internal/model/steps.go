package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// stepTextKeys are the fields models put step text under when they return
// steps as objects, in the order they are tried.
var stepTextKeys = []string{"action", "step", "description", "text", "instruction", "title", "name"}

// Steps is an ordered list of test or reproduction steps. Model replies are
// not always consistent about how they shape steps, so decoding accepts
// strings, objects, numbers, a single string or null and never fails; an
// element it cannot turn into text is kept as its raw JSON.
type Steps []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Steps) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*s = nil
		return nil
	case data[0] != '[':
		*s = Steps{stepText(data)}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = Steps{string(data)}
		return nil
	}
	out := make(Steps, 0, len(raw))
	for _, r := range raw {
		if text := stepText(r); text != "" {
			out = append(out, text)
		}
	}
	*s = out
	return nil
}

func stepText(r json.RawMessage) string {
	r = bytes.TrimSpace(r)
	if len(r) == 0 || bytes.Equal(r, []byte("null")) {
		return ""
	}

	var str string
	if err := json.Unmarshal(r, &str); err == nil {
		return strings.TrimSpace(str)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r, &obj); err == nil {
		for _, key := range stepTextKeys {
			if v, ok := obj[key]; ok {
				if err := json.Unmarshal(v, &str); err == nil && strings.TrimSpace(str) != "" {
					return strings.TrimSpace(str)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, r); err != nil {
		return string(r)
	}
	return buf.String()
}
