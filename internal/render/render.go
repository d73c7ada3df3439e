package render

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"stack-keeper/internal/models"
)

const (
	placeholderOpen  = "${"
	defaultSeparator = ":-"
	defaultLoopback  = "127.0.0.1"
)

var barePlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

/**
 * Render a configuration template
 * @param {string} tmpl - Template text
 * @param {Source} src - Variable source
 * @returns {string} Rendered text
 * @description
 * - Pass 1 resolves ${NAME:-default}: pinned value, else source value, else default
 * - Pass 2 resolves the remaining ${NAME}: source value, else empty string
 * - Pass 3 applies the literal port rewrites
 * - Pure: same template and source always give the same text
 * - Unresolved names never fail; leftover "${" makes the artifact stale instead
 */
func Render(tmpl string, src Source) string {
	out := resolveDefaulted(tmpl, src)
	out = resolveBare(out, src)
	return rewritePorts(out, src)
}

/**
 * Render a template file
 * @param {string} path - Template path
 * @param {Source} src - Variable source
 * @returns {(string, error)} Rendered text, *models.TemplateError if the file cannot be read
 */
func RenderFile(path string, src Source) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &models.TemplateError{Path: path, Err: err}
	}
	return Render(string(data), src), nil
}

// RenderAll renders every string of a slice, used for command arguments.
func RenderAll(items []string, src Source) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = Render(item, src)
	}
	return out
}

// Missing lists the ${NAME} placeholders that no layer defines, in order of first use.
// They render as empty strings.
func Missing(tmpl string, src Source) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range barePlaceholder.FindAllStringSubmatch(resolveDefaulted(tmpl, src), -1) {
		if _, ok := src.Lookup(m[1]); ok || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// HasUnresolved reports leftover placeholder syntax.
func HasUnresolved(text string) bool {
	return strings.Contains(text, placeholderOpen)
}

func resolveDefaulted(tmpl string, src Source) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		i := strings.Index(rest, placeholderOpen)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		rest = rest[i:]

		name := scanName(rest[len(placeholderOpen):])
		body := rest[len(placeholderOpen)+len(name):]
		if name == "" || !strings.HasPrefix(body, defaultSeparator) {
			// 不是带默认值的形式，留给第二遍处理
			b.WriteString(placeholderOpen)
			rest = rest[len(placeholderOpen):]
			continue
		}
		body = body[len(defaultSeparator):]
		end := matchingBrace(body)
		if end < 0 {
			// 没有闭合的花括号，原样保留
			b.WriteString(rest)
			return b.String()
		}
		fallback := body[:end]
		rest = body[end+1:]

		if v, ok := src.Lookup(name); ok && (v != "" || src.IsPinned(name)) {
			b.WriteString(v)
		} else {
			// 默认值里可能还有带默认值的占位符
			b.WriteString(resolveDefaulted(fallback, src))
		}
	}
}

func resolveBare(text string, src Source) string {
	return barePlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		name := m[len(placeholderOpen) : len(m)-1]
		v, _ := src.Lookup(name)
		return v
	})
}

func rewritePorts(text string, src Source) string {
	host := src.Loopback()
	if host == "" {
		host = defaultLoopback
	}
	for _, rw := range src.rewrites {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(fmt.Sprintf("%s:%d", host, rw.From)) + `\b`)
		text = pattern.ReplaceAllLiteralString(text, fmt.Sprintf("%s:%d", host, rw.To))
	}
	return text
}

// scanName returns the identifier prefix of s.
func scanName(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		case i > 0 && c >= '0' && c <= '9':
		default:
			return s[:i]
		}
	}
	return s
}

// matchingBrace finds the "}" closing a placeholder whose "${" is already consumed,
// counting nested "${" so a default may itself contain placeholders.
func matchingBrace(s string) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], placeholderOpen) {
			depth++
			i++
			continue
		}
		if s[i] == '}' {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
