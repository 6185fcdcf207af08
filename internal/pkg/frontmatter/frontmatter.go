// Package frontmatter parses and serializes the metadata header stored at the
// top of every document.
//
// Only a flat subset of YAML is understood:
//
//	---
//	title: "Hello"
//	draft: true
//	order: 3
//	tags: ["go", "git"]
//	---
//
// Values are strings, numbers, booleans or string lists. Anything else on a
// line is read as a bare string. There are no nested maps, block lists,
// multi-line strings or comments.
package frontmatter

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Delimiter opens and closes the metadata block.
const Delimiter = "---"

// ValueKind describes which field of a Value is populated. The zero kind is
// "undefined" and is skipped by Serialize.
type ValueKind uint8

const (
	KindUndefined ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

// Value is one metadata value.
type Value struct {
	Kind   ValueKind
	String string
	Number float64
	Bool   bool
	List   []string
}

func StringValue(s string) Value { return Value{Kind: KindString, String: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func ListValue(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: KindList, List: items}
}

// Meta maps keys to values.
type Meta map[string]Value

// GetString returns the string value for key. Numbers and booleans are not
// coerced.
func (m Meta) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.String, true
}

// GetList returns the list value for key.
func (m Meta) GetList(key string) ([]string, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindList {
		return nil, false
	}
	return v.List, true
}

// GetBool returns the boolean value for key.
func (m Meta) GetBool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// GetNumber returns the numeric value for key.
func (m Meta) GetNumber(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindNumber {
		return 0, false
	}
	return v.Number, true
}

// Clone returns a copy that shares no list storage with m.
func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		if v.Kind == KindList {
			v.List = append([]string{}, v.List...)
		}
		out[k] = v
	}
	return out
}

// KeyOrder lists keys written first, in this order. Remaining keys follow
// alphabetically.
var KeyOrder = []string{
	"title", "summary", "tags", "cover", "status", "uid",
	"originalCategory", "createdAt", "updatedAt",
}

var (
	numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	keyPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// ValidKey reports whether key can be written and read back unchanged.
func ValidKey(key string) bool { return keyPattern.MatchString(key) }

// InvalidKeys returns the keys of m that ValidKey rejects, sorted.
func (m Meta) InvalidKeys() []string {
	var bad []string
	for k := range m {
		if !ValidKey(k) {
			bad = append(bad, k)
		}
	}
	sort.Strings(bad)
	return bad
}

// Parse splits source into its metadata block and body. Sources that do not
// start with a delimiter line, or whose block is never closed, come back
// unchanged with empty meta.
func Parse(source string) (Meta, string) {
	meta := Meta{}
	first, rest, ok := cutLine(source)
	if !ok || strings.TrimRight(first, "\r") != Delimiter {
		return meta, source
	}

	var lines []string
	remaining := rest
	for {
		line, next, more := cutLine(remaining)
		if strings.TrimRight(line, "\r") == Delimiter {
			for _, l := range lines {
				parseLine(meta, l)
			}
			return meta, next
		}
		if !more {
			return Meta{}, source
		}
		lines = append(lines, line)
		remaining = next
	}
}

// cutLine returns the first line of s (without its newline) and the rest.
// more is false when s held no newline.
func cutLine(s string) (line, rest string, more bool) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func parseLine(meta Meta, line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return
	}
	meta[key] = parseValue(strings.TrimSpace(line[idx+1:]))
}

func parseValue(raw string) Value {
	switch {
	case raw == "":
		return StringValue("")
	case strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"):
		return ListValue(parseList(raw))
	case raw == "true":
		return BoolValue(true)
	case raw == "false":
		return BoolValue(false)
	case numberPattern.MatchString(raw):
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return StringValue(raw)
		}
		return NumberValue(n)
	default:
		return StringValue(unquote(raw))
	}
}

// parseList accepts a JSON string array or a bare comma list. Anything it
// cannot read becomes an empty list.
func parseList(raw string) []string {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			case bool:
				out = append(out, strconv.FormatBool(v))
			default:
				return []string{}
			}
		}
		return out
	}

	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return []string{}
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" || strings.ContainsAny(item, "[]") {
			return []string{}
		}
		if q := item[0]; q == '"' || q == '\'' {
			if len(item) < 2 || item[len(item)-1] != q {
				return []string{}
			}
		}
		out = append(out, unquote(item))
	}
	return out
}

func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	switch raw[0] {
	case '"':
		if raw[len(raw)-1] != '"' {
			return raw
		}
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
		return raw[1 : len(raw)-1]
	case '\'':
		if raw[len(raw)-1] != '\'' {
			return raw
		}
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	return raw
}

// Serialize renders meta as a delimited block followed by a newline. Keys
// failing ValidKey are skipped. It returns "" when nothing is left.
func Serialize(meta Meta) string {
	keys := orderedKeys(meta)
	if len(keys) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(formatValue(meta[key]))
		b.WriteByte('\n')
	}
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	return b.String()
}

// Apply replaces the metadata block of content with meta. Merging old and new
// values is up to the caller.
func Apply(content string, meta Meta) string {
	_, body := Parse(content)
	return Serialize(meta) + body
}

func orderedKeys(meta Meta) []string {
	seen := make(map[string]struct{}, len(meta))
	keys := make([]string, 0, len(meta))
	for _, key := range KeyOrder {
		if v, ok := meta[key]; ok && v.Kind != KindUndefined {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	var rest []string
	for key, v := range meta {
		if _, ok := seen[key]; ok || v.Kind == KindUndefined || !ValidKey(key) {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatValue(v Value) string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		quoted := make([]string, len(v.List))
		for i, item := range v.List {
			quoted[i] = quoteString(item)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return quoteString(v.String)
	}
}

func quoteString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}
