// Package masking removes PHI from text before it reaches logs or events.
// Phone numbers and e-mail addresses are replaced with fixed placeholders;
// storage-side code uses consent.HashPII instead.
package masking

import (
	"log/slog"
	"regexp"
)

// MaskingPattern defines a regex pattern and its replacement.
type MaskingPattern struct {
	Name        string
	Pattern     string
	Replacement string
	Description string
}

// CompiledPattern holds a pre-compiled pattern ready for application.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns lists the PHI shapes that may appear in appointment
// payloads. Order is the application order.
func builtinPatterns() []MaskingPattern {
	return []MaskingPattern{
		{
			Name: "phone",
			// E.164, international with separators, and 3-3-3 national
			// groups. Date shapes (4-2-2) must not match.
			Pattern:     `\+\d{9,15}\b|\+\d{1,3}(?:[ .-]\d{2,4}){2,4}\b|\b\d{3}[ .-]\d{3}[ .-]\d{3}\b`,
			Replacement: `***MASKED_PHONE***`,
			Description: "Phone numbers",
		},
		{
			Name:        "email",
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `***MASKED_EMAIL***`,
			Description: "Email addresses",
		},
	}
}

// Masker applies PHI masking. Created once at startup; thread-safe and
// stateless aside from compiled patterns.
type Masker struct {
	patterns []*CompiledPattern
}

// NewMasker compiles all built-in patterns eagerly. Invalid patterns are
// logged and skipped.
func NewMasker() *Masker {
	m := &Masker{}
	for _, pattern := range builtinPatterns() {
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", pattern.Name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, &CompiledPattern{
			Name:        pattern.Name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		})
	}
	return m
}

// MaskText replaces every PHI match in the text.
func (m *Masker) MaskText(text string) string {
	if text == "" {
		return text
	}
	masked := text
	for _, pattern := range m.patterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}
	return masked
}

// MaskMap returns a copy of the map with every string value masked. Nested
// maps and slices are masked recursively; non-string values pass through.
func (m *Masker) MaskMap(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	masked := make(map[string]any, len(fields))
	for key, value := range fields {
		masked[key] = m.maskValue(value)
	}
	return masked
}

func (m *Masker) maskValue(value any) any {
	switch v := value.(type) {
	case string:
		return m.MaskText(v)
	case map[string]any:
		return m.MaskMap(v)
	case []any:
		masked := make([]any, len(v))
		for i, item := range v {
			masked[i] = m.maskValue(item)
		}
		return masked
	default:
		return value
	}
}
