package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/theirongolddev/qaid/internal/model"
)

var errNoJSON = errors.New("reply contains no JSON")

// extractJSON returns the JSON document inside a model reply, dropping
// markdown fences and surrounding prose.
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", errNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", errNoJSON
	}
	return s[start : end+1], nil
}

// ParseTestCases decodes test cases from a model reply. It accepts either
// {"testCases": [...]} or a bare array.
func ParseTestCases(text string) ([]model.TestCase, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	if raw[0] == '[' {
		var cases []model.TestCase
		if err := json.Unmarshal([]byte(raw), &cases); err != nil {
			return nil, fmt.Errorf("decoding test cases: %w", err)
		}
		return cases, nil
	}

	var wrapped struct {
		TestCases []model.TestCase `json:"testCases"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("decoding test cases: %w", err)
	}
	return wrapped.TestCases, nil
}

// ParseBugReport decodes a bug report from a model reply. It accepts the
// report itself or {"bugReport": {...}}.
func ParseBugReport(text string) (*model.BugReport, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		BugReport *model.BugReport `json:"bugReport"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.BugReport != nil {
		return wrapped.BugReport, nil
	}

	var report model.BugReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("decoding bug report: %w", err)
	}
	if report.Title == "" && report.Description == "" {
		return nil, errors.New("bug report has no title or description")
	}
	return &report, nil
}
