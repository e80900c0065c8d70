package routing

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize case-folds and diacritic-folds s, replaces every run of
// non-letter/digit runes with a single space and trims the result.
func Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	folded := cases.Fold().String(s)
	// transformers carry state, build one per call
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripper, folded); err == nil {
		folded = out
	}

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// Tokens returns the distinct words of an already normalized string with at
// least minLen runes, in order of first appearance.
func Tokens(normalized string, minLen int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if utf8.RuneCountInString(tok) < minLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func containsPhrase(normalized, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+normalized+" ", " "+phrase+" ")
}

// NormalizeLanguage maps classifier and skill-tag spellings onto RU, KZ and ENG.
func NormalizeLanguage(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch v {
	case "RU", "RUS", "RUSSIAN", "РУССКИЙ", "РУС":
		return "RU"
	case "KZ", "KAZ", "KK", "KAZAKH", "КАЗАХСКИЙ", "ҚАЗАҚ", "КАЗ":
		return "KZ"
	case "EN", "ENG", "ENGLISH", "АНГЛИЙСКИЙ":
		return "ENG"
	default:
		return v
	}
}

// ParseSkills splits a free-text skill field on commas, semicolons and
// slashes, upper-cases the tags and canonicalizes language tags.
func ParseSkills(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '|'
	})
	seen := map[string]struct{}{}
	var out []string
	for _, f := range fields {
		tag := strings.TrimSpace(f)
		if tag == "" {
			continue
		}
		tag = NormalizeLanguage(tag)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
