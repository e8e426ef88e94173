package core

import (
	"context"
	"sync"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	inputs []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeTranslator struct {
	out string
	err error
}

func (f *fakeTranslator) Translate(_ context.Context, text string, _, _ Language) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakeCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }
