package pipeline

import (
	"context"
	"errors"
)

type mockFileStore struct {
	Filename string
	Data     []byte
	Err      error
}

func (m *mockFileStore) Fetch(ctx context.Context, documentID string) (string, []byte, error) {
	if m.Err != nil {
		return "", nil, m.Err
	}
	return m.Filename, m.Data, nil
}

type mockEmbedder struct {
	Dimensions int
	Calls      int
	FailFirst  int // fail this many calls before succeeding
	Err        error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.Calls++
	if m.FailFirst > 0 {
		m.FailFirst--
		return nil, errors.New("provider unavailable")
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.Dimensions)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}

type mockLLM struct {
	Response      string
	ResponseQueue []string
	Prompts       []string
	Err           error
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}
