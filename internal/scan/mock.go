package scan

import "context"

// MockClient permite tests sin llamar al servicio de detección real.
type MockClient struct {
	Result Result
	Err    error
	Calls  int
}

func (m *MockClient) Scan(ctx context.Context, req Request) (Result, error) {
	m.Calls++
	return m.Result, m.Err
}
