package provider

import "context"

// MockAdapter is a scripted in-memory Adapter useful for tests. Each
// SendTurn/Continue pops the next scripted step; an empty script yields a
// canned final text.
type MockAdapter struct {
	name string
	// Script entries are consumed in order. A step with Err set fails the
	// call; otherwise its Response is returned.
	Script []MockStep

	// SendTurns and Continues count outer and inner calls for assertions.
	SendTurns int
	Continues int

	// LastRequest records the most recent SendTurn request.
	LastRequest Request
	// Results records every batch of tool results passed to Continue.
	Results [][]ToolResult
}

// MockStep is one scripted adapter response.
type MockStep struct {
	Response Response
	Err      error
}

// NewMockAdapter constructs a MockAdapter with the given name and script.
func NewMockAdapter(name string, script ...MockStep) *MockAdapter {
	return &MockAdapter{name: name, Script: script}
}

// Name implements Adapter.
func (m *MockAdapter) Name() string { return m.name }

// SupportsTools implements Adapter.
func (m *MockAdapter) SupportsTools() bool { return true }

// SendTurn implements Adapter.
func (m *MockAdapter) SendTurn(ctx context.Context, req Request) (Exchange, Response, error) {
	m.SendTurns++
	m.LastRequest = req
	resp, err := m.next()
	if err != nil {
		return nil, Response{}, err
	}
	return &mockExchange{adapter: m}, resp, nil
}

func (m *MockAdapter) next() (Response, error) {
	if len(m.Script) == 0 {
		return Response{Text: "mock response"}, nil
	}
	step := m.Script[0]
	m.Script = m.Script[1:]
	if step.Err != nil {
		return Response{}, step.Err
	}
	return step.Response, nil
}

type mockExchange struct {
	adapter *MockAdapter
}

func (e *mockExchange) Continue(ctx context.Context, results []ToolResult) (Response, error) {
	e.adapter.Continues++
	e.adapter.Results = append(e.adapter.Results, results)
	return e.adapter.next()
}
