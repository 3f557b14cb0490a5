package lang

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/argstates/internal/model"
)

// ParseCInteger decodes a C/C++ integer literal: decimal, octal, hex or
// binary, with optional digit separators and u/l/z suffixes. Floating
// literals and user-defined literals are rejected. Values above MaxInt64
// wrap the way a conversion to a signed 64-bit integer does.
func ParseCInteger(text string) (int64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "'", "")
	// The C grammar folds a leading sign into the literal.
	if strings.HasPrefix(s, "-") {
		i, ok := ParseCInteger(s[1:])
		return -i, ok
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimRight(s, "uUlLzZ")
	if s == "" {
		return 0, false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		if strings.ContainsAny(lower[2:], ".p") {
			return 0, false
		}
	} else if strings.ContainsAny(lower, ".e") {
		return 0, false
	}
	if strings.Contains(s, "_") {
		return 0, false
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return int64(u), true
}

// ParseCChar decodes a C/C++ character literal such as 'a', '\n', L'\x41'.
// Multi-character constants are rejected.
func ParseCChar(text string) (rune, bool) {
	start := strings.IndexByte(text, '\'')
	end := strings.LastIndexByte(text, '\'')
	if start < 0 || end <= start {
		return 0, false
	}
	units, ok := decodeCEscapes(text[start+1 : end])
	if !ok || len(units) != 1 {
		return 0, false
	}
	return units[0].r, true
}

// ParseCString decodes a C/C++ string literal, including encoding prefixes
// (L, u, U, u8) and C++ raw strings.
func ParseCString(text string) (string, bool) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '"')
	if start < 0 || !strings.HasSuffix(text, `"`) || len(text)-1 <= start {
		return "", false
	}
	if prefix := text[:start]; strings.HasSuffix(prefix, "R") {
		return parseRawString(text[start:])
	}
	units, ok := decodeCEscapes(text[start+1 : len(text)-1])
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, u := range units {
		if u.raw && u.r < 0x100 {
			b.WriteByte(byte(u.r))
			continue
		}
		b.WriteRune(u.r)
	}
	return b.String(), true
}

// ParseCConstant decodes constant source text such as a macro body. It
// accepts a single (optionally parenthesized or negated) integer, character
// or string literal.
func ParseCConstant(text string) (model.Value, bool) {
	s := strings.TrimSpace(text)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return model.Value{}, false
	}
	switch {
	case strings.HasSuffix(s, `"`):
		if str, ok := ParseCString(s); ok {
			return model.StringValue(str), true
		}
	case strings.HasSuffix(s, "'") && !strings.ContainsAny(s[:1], "0123456789"):
		if r, ok := ParseCChar(s); ok {
			return model.CharValue(r), true
		}
	case s[0] == '-':
		if v, ok := ParseCConstant(s[1:]); ok && v.Kind == model.Int {
			return model.IntValue(-v.Int), true
		}
	case s[0] == '+':
		if v, ok := ParseCConstant(s[1:]); ok && v.Kind == model.Int {
			return v, true
		}
	default:
		if i, ok := ParseCInteger(s); ok {
			return model.IntValue(i), true
		}
	}
	return model.Value{}, false
}

// cunit is one decoded code unit. raw marks numeric escapes (\x, octal),
// which denote bytes rather than code points in narrow strings.
type cunit struct {
	r   rune
	raw bool
}

func decodeCEscapes(s string) ([]cunit, bool) {
	var out []cunit
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(s[i:])
			out = append(out, cunit{r: r})
			i += size
			continue
		}
		i++
		if i >= len(s) {
			return nil, false
		}
		c = s[i]
		i++
		switch c {
		case 'n':
			out = append(out, cunit{r: '\n'})
		case 't':
			out = append(out, cunit{r: '\t'})
		case 'r':
			out = append(out, cunit{r: '\r'})
		case 'a':
			out = append(out, cunit{r: '\a'})
		case 'b':
			out = append(out, cunit{r: '\b'})
		case 'f':
			out = append(out, cunit{r: '\f'})
		case 'v':
			out = append(out, cunit{r: '\v'})
		case 'e', 'E':
			out = append(out, cunit{r: 0x1b})
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := rune(c - '0')
			for n := 1; n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7'; n++ {
				v = v*8 + rune(s[i]-'0')
				i++
			}
			out = append(out, cunit{r: v, raw: true})
		case 'x':
			v, n := hexPrefix(s[i:], -1)
			if n == 0 {
				return nil, false
			}
			i += n
			out = append(out, cunit{r: v, raw: true})
		case 'u', 'U':
			width := 4
			if c == 'U' {
				width = 8
			}
			v, n := hexPrefix(s[i:], width)
			if n != width {
				return nil, false
			}
			i += n
			out = append(out, cunit{r: v})
		default:
			// \\, \', \", \? and unknown escapes stand for themselves.
			r, size := utf8.DecodeRuneInString(s[i-1:])
			i += size - 1
			out = append(out, cunit{r: r})
		}
	}
	return out, true
}

// hexPrefix decodes up to max hex digits (unlimited when max < 0) from the
// start of s.
func hexPrefix(s string, max int) (rune, int) {
	var v rune
	n := 0
	for n < len(s) && (max < 0 || n < max) {
		d, ok := hexDigit(s[n])
		if !ok {
			break
		}
		v = v*16 + d
		n++
	}
	return v, n
}

func hexDigit(c byte) (rune, bool) {
	switch {
	case c >= '0' && c <= '9':
		return rune(c - '0'), true
	case c >= 'a' && c <= 'f':
		return rune(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return rune(c-'A') + 10, true
	default:
		return 0, false
	}
}

// parseRawString decodes the part of a C++ raw string starting at the
// opening quote: "delim(content)delim".
func parseRawString(s string) (string, bool) {
	open := strings.IndexByte(s, '(')
	if open < 1 {
		return "", false
	}
	delim := s[1:open]
	closing := ")" + delim + `"`
	if !strings.HasSuffix(s, closing) || len(s)-len(closing) < open+1 {
		return "", false
	}
	return s[open+1 : len(s)-len(closing)], true
}
