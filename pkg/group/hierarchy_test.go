package group

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/lattice-graph/lattice/pkg/faults"
)

func TestAddMemberRejectsSelfContainment(t *testing.T) {
	store := NewStore(setupTestDB(t))
	g := mustCreate(t, store, "a")

	err := store.AddMember(context.Background(), g.ID, MemberGroup, g.ID, "admin")
	if !faults.IsConflict(err) {
		t.Fatalf("Expected conflict for self-containment, got %v", err)
	}
}

func TestAddMemberRejectsIndirectCycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	a := mustCreate(t, store, "a")
	b := mustCreate(t, store, "b")
	c := mustCreate(t, store, "c")

	// a contains b contains c; closing c -> a is a cycle.
	mustAddMember(t, store, a.ID, MemberGroup, b.ID)
	mustAddMember(t, store, b.ID, MemberGroup, c.ID)

	err := store.AddMember(ctx, c.ID, MemberGroup, a.ID, "admin")
	if !faults.IsConflict(err) {
		t.Fatalf("Expected conflict for indirect cycle, got %v", err)
	}
}

func TestWouldCreateCycleAllowsDiamond(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	top := mustCreate(t, store, "top")
	left := mustCreate(t, store, "left")
	right := mustCreate(t, store, "right")
	bottom := mustCreate(t, store, "bottom")

	mustAddMember(t, store, top.ID, MemberGroup, left.ID)
	mustAddMember(t, store, top.ID, MemberGroup, right.ID)
	mustAddMember(t, store, left.ID, MemberGroup, bottom.ID)

	// bottom under right as well: two paths to top, but no cycle.
	cycle, err := store.WouldCreateCycle(ctx, right.ID, bottom.ID)
	if err != nil {
		t.Fatalf("WouldCreateCycle failed: %v", err)
	}
	if cycle {
		t.Error("Expected diamond containment to be allowed")
	}
}

func TestNestingDepth(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	a := mustCreate(t, store, "a")
	b := mustCreate(t, store, "b")
	c := mustCreate(t, store, "c")

	mustAddMember(t, store, a.ID, MemberGroup, b.ID)
	mustAddMember(t, store, b.ID, MemberGroup, c.ID)

	depth, err := store.NestingDepth(ctx, a.ID)
	if err != nil {
		t.Fatalf("NestingDepth failed: %v", err)
	}
	if depth != 3 {
		t.Errorf("Expected depth 3 for a three-level chain, got %d", depth)
	}

	depth, err = store.NestingDepth(ctx, c.ID)
	if err != nil {
		t.Fatalf("NestingDepth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("Expected depth 1 for a leaf group, got %d", depth)
	}
}

func TestAddMemberRejectsExcessiveDepth(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	// Build a chain exactly at the depth limit.
	groups := make([]*Group, MaxNestingDepth)
	for i := range groups {
		groups[i] = mustCreate(t, store, fmt.Sprintf("g%d", i))
	}
	for i := 0; i < len(groups)-1; i++ {
		mustAddMember(t, store, groups[i].ID, MemberGroup, groups[i+1].ID)
	}

	extra := mustCreate(t, store, "extra")
	err := store.AddMember(ctx, groups[len(groups)-1].ID, MemberGroup, extra.ID, "admin")
	if !faults.IsConflict(err) {
		t.Fatalf("Expected conflict when exceeding the depth limit, got %v", err)
	}

	// Adding at the top widens the graph without deepening it.
	wide := mustCreate(t, store, "wide")
	if err := store.AddMember(ctx, groups[0].ID, MemberGroup, wide.ID, "admin"); err != nil {
		t.Fatalf("Expected a sibling at the top to be allowed, got %v", err)
	}
}

func TestEffectiveGroupsClosure(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	parent := mustCreate(t, store, "parent")
	child := mustCreate(t, store, "child")
	grandchild := mustCreate(t, store, "grandchild")
	unrelated := mustCreate(t, store, "unrelated")

	mustAddMember(t, store, parent.ID, MemberGroup, child.ID)
	mustAddMember(t, store, child.ID, MemberGroup, grandchild.ID)
	mustAddMember(t, store, grandchild.ID, MemberUser, "u1")

	groups, err := store.EffectiveGroups(ctx, "u1")
	if err != nil {
		t.Fatalf("EffectiveGroups failed: %v", err)
	}

	sort.Strings(groups)
	expected := []string{child.ID, grandchild.ID, parent.ID}
	sort.Strings(expected)
	if len(groups) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, groups)
	}
	for i := range expected {
		if groups[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, groups)
		}
	}

	for _, g := range groups {
		if g == unrelated.ID {
			t.Error("Unrelated group leaked into the closure")
		}
	}
}

func TestEffectiveGroupsNoMemberships(t *testing.T) {
	store := NewStore(setupTestDB(t))

	groups, err := store.EffectiveGroups(context.Background(), "loner")
	if err != nil {
		t.Fatalf("EffectiveGroups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Expected no groups, got %v", groups)
	}
}
