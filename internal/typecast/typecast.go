// Package typecast turns the loosely typed text found in spreadsheet cells,
// defaults files and key=value command line arguments into JSON-ready values.
package typecast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/nconklindev/pet2bids/internal/types"
)

// Literal parses s as a literal value. Quoted text becomes a string,
// true/false a bool, integers int64, decimals float64, and [..], (..) or {..}
// a []any (or a map[string]any when the braces hold key: value pairs).
// Container items must themselves be literals, so [11C] is an error and
// callers keep the text. Anything else is returned unchanged as a string.
func Literal(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	switch s[0] {
	case '\'', '"':
		return unquote(s)
	case '[':
		return parseSequence(s, ']')
	case '(':
		return parseSequence(s, ')')
	case '{':
		return parseBraces(s)
	}

	if b, ok := parseBool(s); ok {
		return b, nil
	}
	if n, ok := parseNumber(s); ok {
		return n, nil
	}
	return s, nil
}

// Arg casts a command line value. On top of Literal it accepts the truthy
// words t/yes and f/no, and falls back to the raw text instead of failing.
func Arg(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes":
		return true
	case "false", "f", "no":
		return false
	}
	v, err := Literal(s)
	if err != nil {
		return s
	}
	return v
}

// ParsePairs splits key=value arguments and casts each value with Arg.
func ParsePairs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &types.FieldError{Err: types.ErrInvalidParameter, Fields: []string{arg}, Detail: "expected key=value"}
		}
		if _, dup := out[key]; dup {
			return nil, &types.FieldError{Err: types.ErrInvalidParameter, Fields: []string{key}, Detail: "given more than once"}
		}
		out[key] = Arg(value)
	}
	return out, nil
}

// Float converts a decoded value to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, ok := parseNumber(strings.TrimSpace(n)); ok {
			return Float(f)
		}
	}
	return 0, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseNumber(s string) (any, bool) {
	if s == "" || !strings.ContainsRune("+-.0123456789", rune(s[0])) {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, false
	}
	return f, true
}

func unquote(s string) (string, error) {
	q := s[0]
	if len(s) < 2 || s[len(s)-1] != q || s[len(s)-2] == '\\' {
		return "", fmt.Errorf("unterminated string %s", s)
	}
	inner := s[1 : len(s)-1]
	inner = strings.ReplaceAll(inner, `\`+string(q), string(q))
	if q == '\'' {
		inner = strings.ReplaceAll(inner, "''", "'")
	}
	return inner, nil
}

func parseSequence(s string, closer byte) ([]any, error) {
	if s[len(s)-1] != closer {
		return nil, fmt.Errorf("unterminated list %s", s)
	}
	items, err := splitItems(s[1 : len(s)-1])
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := element(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// element parses one container item. Bare words are rejected.
func element(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty item")
	}
	v, err := Literal(s)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(string); ok && s[0] != '\'' && s[0] != '"' {
		return nil, fmt.Errorf("unquoted item %s", s)
	}
	return v, nil
}

func parseBraces(s string) (any, error) {
	if s[len(s)-1] != '}' {
		return nil, fmt.Errorf("unterminated braces %s", s)
	}
	items, err := splitItems(s[1 : len(s)-1])
	if err != nil {
		return nil, err
	}

	isDict := len(items) > 0
	for _, item := range items {
		if _, _, ok := cutTop(item, ':'); !ok {
			isDict = false
			break
		}
	}
	if !isDict {
		return parseSequence("["+s[1:len(s)-1]+"]", ']')
	}

	out := make(map[string]any, len(items))
	for _, item := range items {
		k, v, _ := cutTop(item, ':')
		key, err := element(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		val, err := element(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(key)] = val
	}
	return out, nil
}

// splitItems splits the inside of a list on top-level commas, or on
// whitespace when there is neither a top-level comma nor a key: value
// pair ([16 10]).
func splitItems(inner string) ([]string, error) {
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}
	parts, err := splitTop(inner, func(r rune) bool { return r == ',' })
	if err != nil {
		return nil, err
	}
	if _, _, pair := cutTop(inner, ':'); len(parts) == 1 && !pair {
		parts, err = splitTop(inner, unicode.IsSpace)
		if err != nil {
			return nil, err
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func splitTop(s string, isSep func(rune) bool) ([]string, error) {
	var (
		parts []string
		depth int
		quote rune
		start int
		prev  rune
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote && prev != '\\' {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(' || r == '{':
			depth++
		case r == ']' || r == ')' || r == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in %s", s)
			}
		case depth == 0 && isSep(r):
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
		prev = r
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string in %s", s)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %s", s)
	}
	return append(parts, s[start:]), nil
}

func cutTop(s string, sep rune) (string, string, bool) {
	parts, err := splitTop(s, func(r rune) bool { return r == sep })
	if err != nil || len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], string(sep)), true
}
