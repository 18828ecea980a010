// Package llm defines the LLM provider contract used for pre-summarization
// and digest generation.
package llm

import (
	"context"
)

// Image is provider-native inline image data.
type Image struct {
	MIMEType string
	Data     []byte
}

// Provider is the interface all LLM backends implement. Generate returns the
// model's text for a prompt, optionally with a system instruction and inline
// images. Implementations raise errs-coded errors on auth, timeout,
// rate-limit, and empty-response failures.
type Provider interface {
	Generate(ctx context.Context, prompt, system string, images []Image) (string, error)
	CountTokens(text string) int
}

// Call records one Generate invocation, for test assertions.
type Call struct {
	Prompt   string
	System   string
	Images   []Image
	Response string
}

// Mock is a canned-response Provider that tracks every call.
type Mock struct {
	Response string
	Err      error
	Calls    []Call
}

// NewMock returns a Mock that answers every Generate with response.
func NewMock(response string) *Mock {
	return &Mock{Response: response}
}

func (m *Mock) Generate(_ context.Context, prompt, system string, images []Image) (string, error) {
	call := Call{Prompt: prompt, System: system, Images: images}
	if m.Err == nil {
		call.Response = m.Response
	}
	m.Calls = append(m.Calls, call)

	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// CountTokens estimates roughly four characters per token.
func (m *Mock) CountTokens(text string) int {
	return len(text) / 4
}

// Reset clears the recorded call history.
func (m *Mock) Reset() {
	m.Calls = nil
}
