package profanity

import (
	"bufio"
	_ "embed"
	"regexp"
	"strings"
)

// Placeholder replaces every flagged word.
const Placeholder = "something"

//go:embed words_en.txt
var wordsEN string

type Filter struct {
	words map[string]struct{}
}

// NewFilter builds a filter over the bundled English list plus any extra words.
func NewFilter(extra ...string) *Filter {
	f := &Filter{words: make(map[string]struct{})}

	scanner := bufio.NewScanner(strings.NewReader(wordsEN))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.words[line] = struct{}{}
	}
	for _, w := range extra {
		f.words[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return f
}

func (f *Filter) IsFlagged(word string) bool {
	if _, ok := f.words[word]; ok {
		return true
	}
	_, ok := f.words[strings.ToLower(word)]
	return ok
}

// whitespace runs, including the Unicode space separators
var separators = regexp.MustCompile(`[\s\x0B\p{Z}\x{FEFF}]+`)

// Clean splits the prompt on whitespace runs, swaps flagged words for the
// placeholder and joins the result with single spaces. Leading or trailing
// whitespace collapses to one space instead of being trimmed.
func (f *Filter) Clean(prompt string) string {
	words := separators.Split(prompt, -1)
	for i, w := range words {
		if w != "" && f.IsFlagged(w) {
			words[i] = Placeholder
		}
	}
	return strings.Join(words, " ")
}

var defaultFilter = NewFilter()

func Clean(prompt string) string {
	return defaultFilter.Clean(prompt)
}
