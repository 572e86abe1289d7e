package narrator

import "context"

// MockCall records one Generate invocation.
type MockCall struct {
	SystemPrompt string
	UserInput    string
}

// Mock is a test double for the Generator interface. It can also serve as
// a dry-run provider.
type Mock struct {
	Chunks []string
	Err    error
	Calls  []MockCall
}

// Generate records the call, replays the configured chunks, and returns
// their concatenation.
func (m *Mock) Generate(ctx context.Context, systemPrompt, userInput string, onChunk func(string) error) (string, error) {
	m.Calls = append(m.Calls, MockCall{SystemPrompt: systemPrompt, UserInput: userInput})
	if m.Err != nil {
		return "", m.Err
	}

	full := ""
	for _, chunk := range m.Chunks {
		full += chunk
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return full, err
			}
		}
	}
	return full, nil
}
