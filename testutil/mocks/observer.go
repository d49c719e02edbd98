package mocks

import (
	"sync"
	"time"
)

// MockObserver records engine observations in memory.
type MockObserver struct {
	mu sync.Mutex

	Decisions           map[string]int
	Loops               map[string]int
	SeedTransitions     map[string]int
	ScenesCompleted     int
	ScenesCancelled     int
	ConsequenceFailures int
}

// NewMockObserver creates an empty observer.
func NewMockObserver() *MockObserver {
	return &MockObserver{
		Decisions:       make(map[string]int),
		Loops:           make(map[string]int),
		SeedTransitions: make(map[string]int),
	}
}

func (o *MockObserver) RecordDecision(reason string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Decisions[reason]++
}

func (o *MockObserver) RecordLoopDetected(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Loops[kind]++
}

func (o *MockObserver) RecordSeedTransition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.SeedTransitions[from+"->"+to]++
}

func (o *MockObserver) RecordSceneFinished(_ string, completed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if completed {
		o.ScenesCompleted++
	} else {
		o.ScenesCancelled++
	}
}

func (o *MockObserver) RecordConsequenceFailures(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ConsequenceFailures += n
}

// DecisionCount returns how many decisions carried reason.
func (o *MockObserver) DecisionCount(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Decisions[reason]
}
