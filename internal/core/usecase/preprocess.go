package usecase

import (
	"html"
	"regexp"
	"strings"
)

// Preprocessor normalizes raw query text. Pure and deterministic; it never
// fails, an unusable input simply normalizes to the empty string.
type Preprocessor struct {
	stopWords map[string]struct{}
}

type PreprocessorConfig struct {
	// StopWords are removed after tokenization when non-empty. Optional.
	StopWords []string
}

func NewPreprocessor(cfg PreprocessorConfig) *Preprocessor {
	var stop map[string]struct{}
	if len(cfg.StopWords) > 0 {
		stop = make(map[string]struct{}, len(cfg.StopWords))
		for _, w := range cfg.StopWords {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				stop[w] = struct{}{}
			}
		}
	}
	return &Preprocessor{stopWords: stop}
}

var (
	htmlTagPattern       = regexp.MustCompile(`<[^>]+>`)
	repeatedPunctPattern = regexp.MustCompile(`(\?)\?+|(!)!+|(\.)\.+|(,),+|(;);+|(:):+`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
	trailingPunctPattern = regexp.MustCompile(`[?!.,;:]+$`)
)

// DefaultStopWords is a small English filler-word list. Domain terms like
// "fault", "error" and register names are deliberately absent.
func DefaultStopWords() []string {
	return []string{
		"a", "an", "the", "is", "are", "was", "were",
		"do", "does", "did", "to", "of", "in", "on", "at",
		"please", "can", "could", "would", "i", "my", "me",
	}
}

// Normalize strips markup, folds case, collapses whitespace and squeezes
// repeated punctuation down to a single mark.
func (p *Preprocessor) Normalize(raw string) string {
	out := htmlTagPattern.ReplaceAllString(raw, " ")
	out = html.UnescapeString(out)
	out = strings.ToLower(out)
	out = repeatedPunctPattern.ReplaceAllString(out, "${1}${2}${3}${4}${5}${6}")
	out = whitespaceRunPattern.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	out = trailingPunctPattern.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)

	if len(p.stopWords) > 0 && out != "" {
		fields := strings.Fields(out)
		kept := fields[:0]
		for _, f := range fields {
			if _, drop := p.stopWords[f]; !drop {
				kept = append(kept, f)
			}
		}
		out = strings.Join(kept, " ")
	}
	return out
}
