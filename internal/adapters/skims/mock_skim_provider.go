package skims

import "daysim/internal/domain"

type MockPath struct {
	From, To int
	Result   domain.PathResult
}

// MockSkimProvider returns fixed paths regardless of departure minute.
// Pairs it does not know are unavailable for every mode.
type MockSkimProvider struct {
	m map[skimKey]domain.PathResult
}

func NewMockSkimProvider(paths []MockPath) *MockSkimProvider {
	m := make(map[skimKey]domain.PathResult, len(paths))
	for _, p := range paths {
		m[skimKey{p.Result.Mode(), p.From, p.To}] = p.Result
	}
	return &MockSkimProvider{m: m}
}

func (p *MockSkimProvider) Path(mode domain.Mode, originParcelID, destinationParcelID, _ int) domain.PathResult {
	r, ok := p.m[skimKey{mode, originParcelID, destinationParcelID}]
	if !ok {
		return domain.UnavailablePath(mode)
	}
	return r
}
