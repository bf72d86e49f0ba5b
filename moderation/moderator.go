// Package moderation censors forbidden words in outbound announcement
// and broadcast content before it is fanned out.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// Verdict is the outcome of inspecting one piece of content.
type Verdict struct {
	Sanitized string
	Language  string
	Matches   []string
}

// NewModerator builds the Aho-Corasick automaton over a normalized copy
// of the censored words list.
func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalizeRunes([]rune(word))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Inspect detects the content language and replaces forbidden patterns
// with the censor character, preserving original spacing and length.
func (m *Moderator) Inspect(original string) Verdict {
	info := whatlanggo.Detect(original)
	sanitized, matches := m.censor(original)
	return Verdict{
		Sanitized: sanitized,
		Language:  info.Lang.Iso6391(),
		Matches:   matches,
	}
}

func (m *Moderator) censor(original string) (string, []string) {
	origRunes := []rune(original)
	norm, origIdx := normalizeWithMapping(origRunes)
	if len(norm) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return original, nil
	}

	var matches []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(origIdx) {
			continue
		}
		matches = append(matches, string(span.Word))

		origStart := origIdx[normStart]
		origEnd := origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes), matches
}

// normalizeWithMapping lowercases and strips noise while tracking the
// original position of every kept rune, so matched spans can be mapped
// back onto the source text.
func normalizeWithMapping(origRunes []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))
	for i, r := range origRunes {
		if isNoise(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if isNoise(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
