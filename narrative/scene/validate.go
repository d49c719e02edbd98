package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/sceneflow/types"
)

// Validate checks the structural invariants of a scene and returns every
// violation found, prefixed with the scene code.
func (s *Scene) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("scene %q: "+format, append([]any{s.Code}, args...)...))
	}

	if strings.TrimSpace(s.Code) == "" {
		fail("code is required")
	}
	if strings.TrimSpace(string(s.Category)) == "" {
		fail("category is required")
	}
	if s.MinAIs < 1 {
		fail("min_ais must be at least 1, got %d", s.MinAIs)
	}
	if s.MinAIs > s.MaxAIs {
		fail("min_ais (%d) exceeds max_ais (%d)", s.MinAIs, s.MaxAIs)
	}
	if len(s.Roles) == 0 {
		fail("at least one role is required")
	}
	if len(s.Roles) > s.MaxAIs && s.MaxAIs > 0 {
		fail("declares %d roles but max_ais is %d; raise max_ais or drop roles", len(s.Roles), s.MaxAIs)
	}

	declared := make(map[string]bool, len(s.Roles))
	for _, r := range s.Roles {
		if strings.TrimSpace(r.Name) == "" {
			fail("role with empty name")
			continue
		}
		if declared[r.Name] {
			fail("role %q declared twice", r.Name)
		}
		declared[r.Name] = true
		if !r.Tag.IsValid() {
			fail("role %q has unknown tag %q", r.Name, r.Tag)
		}
	}
	checkRole := func(where, role string) {
		if !declared[role] {
			fail("%s references undeclared role %q (declared: %s)", where, role, strings.Join(s.RoleNames(), ", "))
		}
	}

	if len(s.Interventions) == 0 {
		fail("intervention sequence is empty")
	}
	for i, in := range s.Interventions {
		where := fmt.Sprintf("intervention %d", i)
		checkRole(where, in.Role)
		if in.TargetRole != "" {
			checkRole(where+" target", in.TargetRole)
		}
		if strings.TrimSpace(in.Directive) == "" {
			fail("%s has an empty directive", where)
		}
		if in.Delay < 0 {
			fail("%s has a negative delay", where)
		}
	}

	for i, st := range s.Consequences.Seeds {
		where := fmt.Sprintf("seed consequence %d", i)
		if strings.TrimSpace(st.Type) == "" {
			fail("%s has no type", where)
		}
		if len(st.InvolvedRoles) == 0 {
			fail("%s involves no roles", where)
		}
		for _, r := range st.InvolvedRoles {
			checkRole(where, r)
		}
		if st.LatencyTurns < 0 || st.MaxTurns < 0 {
			fail("%s has negative turn counts", where)
		}
		if st.MaxTurns > 0 && st.LatencyTurns > st.MaxTurns {
			fail("%s latency_turns (%d) exceeds max_turns (%d)", where, st.LatencyTurns, st.MaxTurns)
		}
	}

	for i, rd := range s.Consequences.Relations {
		where := fmt.Sprintf("relation consequence %d", i)
		checkRole(where, rd.RoleA)
		checkRole(where, rd.RoleB)
	}

	for i, e := range s.Consequences.Effects {
		where := fmt.Sprintf("effect %d (%s)", i, e.Kind)
		switch e.Kind {
		case EffectAdjustTension:
			checkRole(where, e.RoleA)
			checkRole(where, e.RoleB)
		case EffectResolveSeed:
			if strings.TrimSpace(e.SeedType) == "" {
				fail("%s needs a seed type target", where)
			}
		case EffectEscalateSeed, EffectUnknown:
		default:
			fail("%s has an unrecognised kind", where)
		}
	}

	bands := []struct {
		name string
		band *Band
	}{{"energy", s.Triggers.Energy}, {"tension", s.Triggers.Tension}}
	for _, nb := range bands {
		if b := nb.band; b != nil && (b.Min < 0 || b.Max > 1 || b.Min > b.Max) {
			fail("%s band [%.2f, %.2f] must satisfy 0 <= min <= max <= 1", nb.name, b.Min, b.Max)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return types.NewError(types.ErrInvalidScene, "invalid scene").WithCause(errors.Join(errs...))
}

// ValidateAll validates every scene and rejects duplicate codes. Chooser
// answers are matched without regard to case, so codes that differ only in
// case count as duplicates.
func ValidateAll(scenes []*Scene) error {
	var errs []error
	seen := make(map[string]string, len(scenes))
	for _, s := range scenes {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		key := strings.ToUpper(s.Code)
		switch prev, dup := seen[key]; {
		case dup && prev == s.Code:
			errs = append(errs, types.Errorf(types.ErrInvalidScene, "scene %q: duplicate code", s.Code))
		case dup:
			errs = append(errs, types.Errorf(types.ErrInvalidScene, "scene %q: duplicate code (differs from %q only in case)", s.Code, prev))
		default:
			seen[key] = s.Code
		}
	}
	return errors.Join(errs...)
}
