package cache

import (
	"context"
	"testing"
	"time"
)

func TestMembershipVersionStartsAtZero(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestCache(t)

	v, err := client.MembershipVersion(ctx)
	if err != nil {
		t.Fatalf("MembershipVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("Expected version 0 before any bump, got %d", v)
	}
}

func TestBumpMembershipVersion(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestCache(t)

	if err := client.BumpMembershipVersion(ctx); err != nil {
		t.Fatalf("BumpMembershipVersion failed: %v", err)
	}

	v, err := client.MembershipVersion(ctx)
	if err != nil {
		t.Fatalf("MembershipVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("Expected version 1 after one bump, got %d", v)
	}
}

func TestEffectiveGroupsKeyEmbedsVersion(t *testing.T) {
	a := EffectiveGroupsKey(0, "u1")
	b := EffectiveGroupsKey(1, "u1")
	if a == b {
		t.Error("Expected different keys for different membership versions")
	}
}

func TestEffectiveGroupsCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestCache(t)

	calls := 0
	compute := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"g1"}, nil
	}

	for i := 0; i < 2; i++ {
		groups, err := client.EffectiveGroups(ctx, "u1", time.Minute, compute)
		if err != nil {
			t.Fatalf("EffectiveGroups failed: %v", err)
		}
		if len(groups) != 1 || groups[0] != "g1" {
			t.Fatalf("Unexpected groups: %v", groups)
		}
	}
	if calls != 1 {
		t.Fatalf("Expected one compute before the bump, got %d", calls)
	}

	// A membership mutation orphans the old key; the next read recomputes.
	if err := client.BumpMembershipVersion(ctx); err != nil {
		t.Fatalf("BumpMembershipVersion failed: %v", err)
	}

	if _, err := client.EffectiveGroups(ctx, "u1", time.Minute, compute); err != nil {
		t.Fatalf("EffectiveGroups failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected a recompute after the bump, got %d calls", calls)
	}
}
