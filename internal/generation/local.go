package generation

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// LocalGenerator builds deterministic text from the prompt without calling a
// model. The same request always yields the same text.
type LocalGenerator struct{}

var _ Generator = LocalGenerator{}

var localPhrases = map[string][][]string{
	"backstory": {
		{"Born under a failing harvest moon,", "Raised among river traders,", "Orphaned by a border war,", "Apprenticed to a cartographer,"},
		{"they learned early that", "they came to believe that", "they swore an oath that", "they discovered that"},
		{"every debt is eventually collected.", "maps lie more often than people.", "the old gods still listen.", "courage is mostly stubbornness."},
		{"Now they travel to settle an old score.", "Now they search for a missing sibling.", "Now they guard a secret they barely understand.", "Now they seek a name worth remembering."},
	},
	"skills": {
		{"Drills daily", "Trained by a veteran", "Self-taught", "Learned the hard way"},
		{"and favours", "and relies on", "and is known for", "and leans on"},
		{"quick reflexes.", "careful planning.", "reading people.", "sheer endurance."},
	},
}

var defaultPhrases = [][]string{
	{"Generated", "Drafted", "Composed", "Prepared"},
	{"locally", "offline", "without a model", "from a template"},
}

// Generate implements Generator.
func (LocalGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	phrases, ok := localPhrases[req.Purpose]
	if !ok {
		phrases = defaultPhrases
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(req.Purpose))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.Prompt))
	seed := h.Sum64()

	parts := make([]string, 0, len(phrases))
	for _, options := range phrases {
		parts = append(parts, options[seed%uint64(len(options))])
		seed /= uint64(len(options))
	}

	text := strings.Join(parts, " ")
	if req.MaxWords > 0 {
		words := strings.Fields(text)
		if len(words) > req.MaxWords {
			text = strings.Join(words[:req.MaxWords], " ")
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty local output", ErrGenerationFailed)
	}
	return text, nil
}
