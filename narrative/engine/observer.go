package engine

import "time"

// Observer receives engine events, typically to export metrics.
type Observer interface {
	RecordDecision(reason string, duration time.Duration)
	RecordLoopDetected(kind string)
	RecordSeedTransition(from, to string)
	RecordSceneFinished(category string, completed bool)
	RecordConsequenceFailures(count int)
}

type nopObserver struct{}

func (nopObserver) RecordDecision(string, time.Duration) {}
func (nopObserver) RecordLoopDetected(string)            {}
func (nopObserver) RecordSeedTransition(string, string)  {}
func (nopObserver) RecordSceneFinished(string, bool)     {}
func (nopObserver) RecordConsequenceFailures(int)        {}
