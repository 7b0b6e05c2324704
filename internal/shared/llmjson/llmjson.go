// Package llmjson parses JSON returned by language models.
//
// Model output is treated as untrusted text. Parse runs a staged repair
// chain and reports which stage succeeded:
//   - direct: the whole string is valid JSON
//   - fenced: valid after stripping markdown code fences
//   - balanced: valid after cutting the outermost balanced {...} or [...]
//   - failed: nothing parsed
//
// Callers never see a panic or a partially-decoded value.
package llmjson

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Stage identifies which repair step produced a value
type Stage int

const (
	StageFailed Stage = iota
	StageDirect
	StageFenced
	StageBalanced
)

// String returns the stage name
func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageFenced:
		return "fenced"
	case StageBalanced:
		return "balanced"
	default:
		return "failed"
	}
}

var (
	ErrEmpty    = errors.New("empty model output")
	ErrNoJSON   = errors.New("no JSON value found in model output")
	ErrNotArray = errors.New("parsed value is neither an array nor an object")
)

// Result is either a parsed value or a parse error, never both
type Result struct {
	Value any
	Stage Stage
	Err   error
}

// OK reports whether parsing succeeded
func (r Result) OK() bool {
	return r.Err == nil && r.Stage != StageFailed
}

// Parse runs the repair chain over raw model output
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Stage: StageFailed, Err: ErrEmpty}
	}

	if v, err := decode(text); err == nil {
		return Result{Value: v, Stage: StageDirect}
	}

	if stripped, ok := stripFences(text); ok {
		if v, err := decode(stripped); err == nil {
			return Result{Value: v, Stage: StageFenced}
		}
		text = stripped
	}

	for _, candidate := range balancedCandidates(text) {
		if v, err := decode(candidate); err == nil {
			return Result{Value: v, Stage: StageBalanced}
		}
	}

	return Result{Stage: StageFailed, Err: ErrNoJSON}
}

// Decode parses raw and re-encodes the value into out
func Decode(raw string, out any) (Stage, error) {
	res := Parse(raw)
	if !res.OK() {
		return StageFailed, res.Err
	}
	data, err := sonic.ConfigStd.Marshal(res.Value)
	if err != nil {
		return StageFailed, fmt.Errorf("re-encode parsed value: %w", err)
	}
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return StageFailed, fmt.Errorf("decode into %T: %w", out, err)
	}
	return res.Stage, nil
}

func decode(s string) (any, error) {
	var v any
	if err := sonic.ConfigStd.UnmarshalFromString(s, &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, ErrNotArray
}

// stripFences removes a ```json ... ``` wrapper if present
func stripFences(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return s, false
	}
	body := s[start+3:]
	// Drop the info string (e.g. "json") up to the first newline
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		info := strings.TrimSpace(body[:nl])
		if !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.LastIndex(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

// balancedCandidates returns the outermost balanced substrings, one per
// opening bracket position, in order of appearance. Brackets inside JSON
// strings are ignored.
func balancedCandidates(s string) []string {
	var out []string
	for i := 0; i < len(s) && len(out) < 4; i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		end, truncated := matchBracket(s, i)
		if truncated {
			// Everything after an unclosed opener is nested inside it
			break
		}
		if end == -1 {
			continue
		}
		out = append(out, s[i:end+1])
		i = end
	}
	return out
}

// matchBracket returns the index closing the bracket at start, or -1 on a
// mismatched closer. truncated is set when the input ends first.
func matchBracket(s string, start int) (end int, truncated bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return -1, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, false
			}
		}
	}
	return -1, true
}
