package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// Suggestion is one model-description pair returned to the buyer.
type Suggestion struct {
	Model       string `json:"model"`
	Description string `json:"description"`
}

const maxSuggestions = 3

const genericDescription = "Recommended for your stated requirements."

// fallbackSuggestion is returned when no parsing strategy extracts anything.
var fallbackSuggestion = Suggestion{
	Model:       "Multiple suitable models available",
	Description: "We could not derive specific recommendations; a consultant will review your requirements.",
}

var (
	numberedPrefix = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	bulletPrefix   = regexp.MustCompile(`^\s*[-*•]\s*`)
	// em dash, en dash, or hyphen surrounded by spaces
	separator = regexp.MustCompile(`\s+[—–-]\s+|\s*—\s*|\s*–\s*`)
)

// ParseSuggestions normalizes raw model output into at most three
// suggestions. Three strategies run in order until one yields at least one
// entry: separator-delimited lines, numbered list lines, then filtered prose
// lines. If everything fails the single generic fallback is returned.
func ParseSuggestions(raw string) []Suggestion {
	lines := cleanLines(raw)

	for _, strategy := range []func([]string) []Suggestion{
		parseSeparatorLines,
		parseNumberedLines,
		parseProseLines,
	} {
		if out := strategy(lines); len(out) > 0 {
			if len(out) > maxSuggestions {
				out = out[:maxSuggestions]
			}
			return out
		}
	}
	return []Suggestion{fallbackSuggestion}
}

func cleanLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseSeparatorLines handles "Model - description" lines on an em dash, en
// dash or spaced hyphen. Numbering and bullet prefixes are stripped first.
func parseSeparatorLines(lines []string) []Suggestion {
	var out []Suggestion
	for _, line := range lines {
		line = stripPrefixes(line)
		parts := separator.Split(line, 2)
		if len(parts) != 2 {
			continue
		}
		m := strings.Trim(strings.TrimSpace(parts[0]), "[]*")
		d := strings.Trim(strings.TrimSpace(parts[1]), "[]")
		if m == "" || d == "" {
			continue
		}
		out = append(out, Suggestion{Model: m, Description: d})
	}
	return out
}

// parseNumberedLines handles plain numbered lists without a separator: the
// line body becomes the model with a generic description.
func parseNumberedLines(lines []string) []Suggestion {
	var out []Suggestion
	for _, line := range lines {
		if !numberedPrefix.MatchString(line) {
			continue
		}
		body := strings.TrimSpace(numberedPrefix.ReplaceAllString(line, ""))
		if body == "" {
			continue
		}
		out = append(out, Suggestion{Model: body, Description: genericDescription})
	}
	return out
}

// preamblePattern matches lead-in lines that carry no recommendation.
var preamblePattern = regexp.MustCompile(`(?i)^(here|sure|certainly|of course|based on|i recommend|below)|:$`)

// parseProseLines takes the remaining non-preamble lines as anonymous
// suggestions labelled generically.
func parseProseLines(lines []string) []Suggestion {
	var out []Suggestion
	n := 0
	for _, line := range lines {
		if preamblePattern.MatchString(line) {
			continue
		}
		line = stripPrefixes(line)
		if len(line) < 3 {
			continue
		}
		n++
		out = append(out, Suggestion{
			Model:       "Suggested model " + strconv.Itoa(n),
			Description: line,
		})
		if n == maxSuggestions {
			break
		}
	}
	return out
}

func stripPrefixes(line string) string {
	line = numberedPrefix.ReplaceAllString(line, "")
	line = bulletPrefix.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
