package seed

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

// Whatever the parameters, a seed never outlives MaxTurns, its turn counter
// is monotonic and its escalation level stays within bounds.
func TestProperty_Seed_LifecycleBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := NewManager(NewMemoryStore(), DefaultConfig(), nil)

		maxTurns := rapid.IntRange(1, 40).Draw(rt, "maxTurns")
		latency := rapid.IntRange(1, maxTurns).Draw(rt, "latency")
		turns := rapid.IntRange(0, 60).Draw(rt, "turns")

		s, err := m.Create(ctx, CreateInput{
			GroupID: "g", Type: "t", InvolvedAgents: []string{"a"},
			LatencyTurns: latency, MaxTurns: maxTurns,
		})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		prevTurn := 0
		for i := 0; i < turns; i++ {
			if rapid.Bool().Draw(rt, "manualEscalate") {
				_, _ = m.Escalate(ctx, s.ID, "")
			}
			if _, err := m.AdvanceTurn(ctx, "g"); err != nil {
				rt.Fatalf("advance: %v", err)
			}
			got, err := m.Get(ctx, s.ID)
			if err != nil {
				rt.Fatalf("get: %v", err)
			}
			if got.CurrentTurn < prevTurn {
				rt.Fatalf("turn went backwards: %d < %d", got.CurrentTurn, prevTurn)
			}
			prevTurn = got.CurrentTurn
			if got.EscalationLevel < 0 || got.EscalationLevel > MaxEscalationLevel {
				rt.Fatalf("escalation out of range: %d", got.EscalationLevel)
			}
			if got.CurrentTurn >= maxTurns && got.Status != StatusExpired {
				rt.Fatalf("seed at turn %d of %d is %s", got.CurrentTurn, maxTurns, got.Status)
			}
			if got.Status.IsTerminal() && got.CurrentTurn > maxTurns {
				rt.Fatalf("terminal seed kept advancing")
			}
		}
	})
}

// The group budget is never exceeded regardless of the create/resolve mix.
func TestProperty_Seed_BudgetNeverExceeded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := NewManager(NewMemoryStore(), DefaultConfig(), nil)

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 40).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0, 1:
				_, _ = m.Create(ctx, CreateInput{GroupID: "g", Type: "t", InvolvedAgents: []string{"a"}})
			case 2:
				active, _ := m.Active(ctx, "g")
				if len(active) > 0 {
					_, _ = m.Resolve(ctx, active[0].ID, "", ResolutionAbandoned)
				}
			}
			n, err := m.CountActive(ctx, "g")
			if err != nil {
				rt.Fatalf("count: %v", err)
			}
			if n > 5 {
				rt.Fatalf("budget exceeded: %d", n)
			}
		}
	})
}
