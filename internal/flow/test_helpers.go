package flow

import "context"

// fakeGenerator is a scripted Generator for tests.
type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int

	lastSystemPrompt string
	lastUserPrompt   string
	lastMaxTokens    int64
}

func (f *fakeGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	f.lastSystemPrompt = systemPrompt
	f.lastUserPrompt = userPrompt
	f.lastMaxTokens = maxTokens

	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	if len(f.replies) > 0 {
		return f.replies[len(f.replies)-1], nil
	}
	return "", nil
}
