package classifier

import (
	"context"
	"errors"
	"fmt"
)

// ExcerptLength is the number of characters of content shown to the classifier.
const ExcerptLength = 1000

const promptTemplate = `Analyze this content and recommend a cache duration in seconds.
Consider:
- Content type (%s)
- Time sensitivity
- Update frequency
Response format: Just the number in seconds.
Content: %s`

// ErrClassifierUnavailable wraps any failure of the underlying completer.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Completer is a single-turn text completion capability.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Adapter asks a Completer for a cache duration recommendation.
type Adapter struct {
	completer Completer
}

func New(c Completer) *Adapter {
	return &Adapter{completer: c}
}

// Classify returns the raw verdict for the given content.
// The verdict is not parsed.
func (a *Adapter) Classify(ctx context.Context, content []byte, contentType string) (string, error) {
	verdict, err := a.completer.Complete(ctx, Prompt(content, contentType))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	return verdict, nil
}

// Prompt renders the classification prompt for content of the given type.
func Prompt(content []byte, contentType string) string {
	return fmt.Sprintf(promptTemplate, contentType, excerpt(content))
}

// excerpt returns the first ExcerptLength characters of content.
func excerpt(content []byte) string {
	n := 0
	for i := range string(content) {
		if n == ExcerptLength {
			return string(content[:i])
		}
		n++
	}
	return string(content)
}
