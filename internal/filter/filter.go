// Package filter decides whether a message is admissible for relay into
// its hub.
package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReasonNSFW is the verdict reason for messages from NSFW-flagged channels.
const ReasonNSFW = "nsfw-channel"

// Verdict is the outcome of a filter check.
type Verdict struct {
	Blocked bool
	Reason  string
}

// Input is the slice of message and hub state the engine looks at.
type Input struct {
	Content       string
	ChannelNSFW   bool
	FilterNSFW    bool
	FilteredWords []string // already case-folded
}

// Engine runs the per-hub admission checks. It is stateless; one instance
// serves every hub.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Check vets a message against its hub. NSFW gating runs first, then
// whole-word matching over the filter set.
func (e *Engine) Check(in Input) Verdict {
	if in.FilterNSFW && in.ChannelNSFW {
		return Verdict{Blocked: true, Reason: ReasonNSFW}
	}
	content := strings.ToLower(in.Content)
	for _, w := range in.FilteredWords {
		if w == "" {
			continue
		}
		if containsWord(content, w) {
			return Verdict{Blocked: true, Reason: "word:" + w}
		}
	}
	return Verdict{}
}

// containsWord reports whether word occurs in content bounded by
// non-word runes on both sides. Both inputs are already lowercased.
// Word runes follow Unicode letter/digit classes, not byte-level \w.
func containsWord(content, word string) bool {
	for from := 0; ; {
		idx := strings.Index(content[from:], word)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(word)
		if boundaryBefore(content, start) && boundaryAfter(content, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !isWordRune(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
