package caption

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DefaultPrompt is used when a request carries no prompt.
const DefaultPrompt = `You are an expert image captioner for AI training datasets. Analyze this image and provide a detailed, descriptive caption.

Requirements:
- Write a single, continuous caption (no bullet points or sections)
- Be extremely detailed about: composition, subjects, poses, expressions, clothing, colors, lighting, background, atmosphere
- Use natural, descriptive language as if describing a photograph
- Do NOT use words like: rendered, hyperrealistic, digital art, artwork, painting, illustration
- Use professional photography terminology where appropriate
- Caption should be 100-200 words
- Focus on what IS in the image, not interpretations

Respond with ONLY the caption, no explanations or prefixes.`

// Sampling defaults and limits for caption requests.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 512

	MaxTemperature = 2.0
	MaxTokensLimit = 4096
)

// leadIns are stripped from the start of model output (case-insensitive).
var leadIns = []string{
	"caption:", "here's the caption:", "here is the caption:", "the caption is:",
	"description:", "here's the description:", "here is the description:",
	"assistant:", "answer:", "image:",
}

// TextOptions controls prompt pre-processing and caption post-processing.
type TextOptions struct {
	PromptPrefix  string
	PromptSuffix  string
	Prepend       string
	Append        string
	StripPrefixes bool
	SingleLine    bool
	MaxLength     int
}

// DefaultTextOptions strips lead-ins and leaves everything else untouched.
func DefaultTextOptions() TextOptions { return TextOptions{StripPrefixes: true} }

// Sampling holds validated sampling parameters.
type Sampling struct {
	Temperature   float64
	TopP          float64
	TopK          int
	MaxTokens     int
	Seed          int64
	RepeatPenalty float64
}

// ErrInvalidParams is returned by ValidateSampling for out-of-range values.
var ErrInvalidParams = errors.New("invalid sampling parameters")

// ValidateSampling applies defaults to unset values and checks ranges:
// temperature in [0,2], top_p in (0,1], max_tokens in [1,4096].
func ValidateSampling(temperature, topP *float64, maxTokens, topK int, seed int64, repeatPenalty float64) (Sampling, error) {
	s := Sampling{Temperature: DefaultTemperature, TopP: DefaultTopP, MaxTokens: DefaultMaxTokens, TopK: topK, Seed: seed, RepeatPenalty: repeatPenalty}
	if temperature != nil {
		s.Temperature = *temperature
	}
	if topP != nil {
		s.TopP = *topP
	}
	if maxTokens != 0 {
		s.MaxTokens = maxTokens
	}
	switch {
	case s.Temperature < 0 || s.Temperature > MaxTemperature:
		return s, fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidParams)
	case s.TopP <= 0 || s.TopP > 1:
		return s, fmt.Errorf("%w: top_p must be in (0, 1]", ErrInvalidParams)
	case s.MaxTokens < 1 || s.MaxTokens > MaxTokensLimit:
		return s, fmt.Errorf("%w: max_tokens must be between 1 and %d", ErrInvalidParams, MaxTokensLimit)
	case s.TopK < 0:
		return s, fmt.Errorf("%w: top_k must not be negative", ErrInvalidParams)
	case s.RepeatPenalty < 0:
		return s, fmt.Errorf("%w: repeat_penalty must not be negative", ErrInvalidParams)
	}
	return s, nil
}

// BuildPrompt returns the prompt sent to the model: the request prompt (or
// DefaultPrompt) wrapped in the optional prefix and suffix.
func BuildPrompt(prompt string, opts TextOptions) string {
	p := strings.TrimSpace(prompt)
	if p == "" {
		p = DefaultPrompt
	}
	if pre := strings.TrimSpace(opts.PromptPrefix); pre != "" {
		p = pre + "\n\n" + p
	}
	if suf := strings.TrimSpace(opts.PromptSuffix); suf != "" {
		p = p + "\n\n" + suf
	}
	return p
}

// CleanCaption post-processes raw model output.
func CleanCaption(raw string, opts TextOptions) string {
	c := strings.TrimSpace(raw)
	if opts.StripPrefixes {
		c = stripLeadIn(c)
	}
	if opts.SingleLine {
		c = strings.Join(strings.Fields(c), " ")
	}
	if opts.MaxLength > 0 {
		c = truncateWords(c, opts.MaxLength)
	}
	if pre := strings.TrimSpace(opts.Prepend); pre != "" {
		c = joinParts(pre, c)
	}
	if app := strings.TrimSpace(opts.Append); app != "" {
		c = joinParts(c, app)
	}
	return c
}

// stripLeadIn removes the first matching lead-in; only one is removed.
func stripLeadIn(c string) string {
	lower := strings.ToLower(c)
	for _, p := range leadIns {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(c[len(p):])
		}
	}
	return c
}

// truncateWords cuts s to at most n bytes, backing up to a word boundary.
func truncateWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !isBoundary(s, len(cut)) {
		cut = cut[:len(cut)-1]
	}
	cut = strings.TrimRightFunc(cut, func(r rune) bool { return unicode.IsSpace(r) || r == ',' || r == ';' })
	if cut == "" {
		// A single word longer than n: cut on a rune boundary instead.
		cut = strings.ToValidUTF8(s[:n], "")
	}
	return cut
}

func isBoundary(s string, i int) bool {
	return i >= len(s) || unicode.IsSpace(rune(s[i]))
}

// joinParts joins two caption fragments. A fragment ending in a comma or
// colon keeps its punctuation and gets a single space after it.
func joinParts(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case strings.HasSuffix(a, ",") || strings.HasSuffix(a, ":"):
		return a + " " + b
	default:
		return a + ", " + b
	}
}
