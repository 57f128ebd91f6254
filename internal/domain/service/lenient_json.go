package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeLenientJSON parses JSON out of raw model output. Local models wrap
// JSON in prose and code fences and drop quotes or commas; this extracts
// the first JSON value and repairs it before unmarshalling.
func DecodeLenientJSON(raw string, v any) error {
	s := extractJSONBlock(raw)
	if s == "" {
		return fmt.Errorf("no JSON value found in output")
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return fmt.Errorf("repair JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), v)
}

// extractJSONBlock returns the first balanced {...} or [...] region,
// stripping markdown code fences first.
func extractJSONBlock(raw string) string {
	s := strings.TrimSpace(raw)

	// Prefer the content of a fenced block if one exists
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		// Skip an optional language tag line
		if nl := strings.Index(rest, "\n"); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unbalanced; hand the tail to the repairer
	return s[start:]
}
