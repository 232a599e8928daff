package production

import (
	"testing"

	"callsheet.org/internal/auth"
)

func TestGrantFor(t *testing.T) {
	p := &Project{
		ID:    "p1",
		Owner: "u2",
		Members: map[string]auth.Tier{
			"u3": auth.TierRead,
			"u4": auth.TierWrite,
			"u5": auth.TierNone,
		},
	}

	if tier, ok := p.GrantFor("u2"); !ok || tier != auth.TierOwner {
		t.Fatalf("owner should hold owner tier, got %v ok=%v", tier, ok)
	}
	if tier, ok := p.GrantFor("u3"); !ok || tier != auth.TierRead {
		t.Fatalf("expected read grant, got %v ok=%v", tier, ok)
	}
	if _, ok := p.GrantFor("u5"); ok {
		t.Fatal("a none grant must not count as held")
	}
	if _, ok := p.GrantFor("stranger"); ok {
		t.Fatal("unknown identity must hold no grant")
	}
	if _, ok := p.GrantFor(""); ok {
		t.Fatal("empty identity must hold no grant")
	}
}

func TestStatsActive(t *testing.T) {
	s := Stats{
		Total: 10,
		ByStatus: map[Status]int{
			StatusPlanning:      3,
			StatusPreProduction: 2,
			StatusProduction:    4,
			StatusWrapped:       1,
		},
	}
	// Both in-flight statuses contribute to the active count.
	if got := s.Active(); got != 6 {
		t.Fatalf("Active()=%d, want 6", got)
	}

	if empty := (Stats{}).Active(); empty != 0 {
		t.Fatalf("empty stats should be zero, got %d", empty)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Pre-Production "); err != nil || s != StatusPreProduction {
		t.Fatalf("got %q, %v", s, err)
	}
	if _, err := ParseStatus("hiatus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
