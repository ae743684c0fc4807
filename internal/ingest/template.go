package ingest

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// RenderTemplate substitutes message template holes with property values.
// Holes take the form {Name}, {@Name}, {$Name}, {Name,align} and
// {Name:format}; "{{" and "}}" are literal braces. String values are
// quoted unless the :l format is given. Holes naming a missing property
// are kept verbatim.
func RenderTemplate(template string, props map[string]any) string {
	if !strings.ContainsAny(template, "{}") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && strings.HasPrefix(template[i:], "{{"):
			b.WriteByte('{')
			i += 2
		case c == '}' && strings.HasPrefix(template[i:], "}}"):
			b.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				return b.String()
			}
			token := template[i : i+end+2]
			b.WriteString(renderHole(token, props))
			i += end + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

type hole struct {
	name   string
	format string
	align  int
}

func parseHole(token string) (hole, bool) {
	body := token[1 : len(token)-1]
	body = strings.TrimLeft(body, "@$")

	var h hole
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		h.format = body[idx+1:]
		body = body[:idx]
	}
	if idx := strings.IndexByte(body, ','); idx >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(body[idx+1:]))
		if err != nil {
			return hole{}, false
		}
		h.align = n
		body = body[:idx]
	}
	h.name = strings.TrimSpace(body)
	if h.name == "" || strings.ContainsAny(h.name, " {") {
		return hole{}, false
	}
	return h, true
}

func renderHole(token string, props map[string]any) string {
	h, ok := parseHole(token)
	if !ok {
		return token
	}
	v, ok := props[h.name]
	if !ok {
		return token
	}

	var text string
	if s, isString := v.(string); isString && h.format != "l" {
		text = `"` + s + `"`
	} else {
		text = displayValue(v)
	}
	return pad(text, h.align)
}

// pad right-aligns for positive widths and left-aligns for negative ones.
func pad(s string, align int) string {
	width := align
	if width < 0 {
		width = -width
	}
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	fill := strings.Repeat(" ", width-n)
	if align > 0 {
		return fill + s
	}
	return s + fill
}
