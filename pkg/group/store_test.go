package group

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lattice-graph/lattice/pkg/faults"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL
		);

		CREATE TABLE group_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			member_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			UNIQUE(group_id, member_type, member_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

func mustCreate(t *testing.T, store *Store, name string) *Group {
	t.Helper()
	g, err := store.Create(context.Background(), name, "", "admin")
	if err != nil {
		t.Fatalf("Failed to create group %s: %v", name, err)
	}
	return g
}

func mustAddMember(t *testing.T, store *Store, groupID string, mt MemberType, memberID string) {
	t.Helper()
	if err := store.AddMember(context.Background(), groupID, mt, memberID, "admin"); err != nil {
		t.Fatalf("Failed to add %s %s to group %s: %v", mt, memberID, groupID, err)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	store := NewStore(setupTestDB(t))
	mustCreate(t, store, "eng")

	_, err := store.Create(context.Background(), "eng", "", "admin")
	if !faults.IsConflict(err) {
		t.Fatalf("Expected conflict for duplicate group name, got %v", err)
	}
}

func TestGetUnknownGroup(t *testing.T) {
	store := NewStore(setupTestDB(t))

	_, err := store.Get(context.Background(), "missing")
	if !faults.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestAddMemberUnknownGroup(t *testing.T) {
	store := NewStore(setupTestDB(t))

	err := store.AddMember(context.Background(), "missing", MemberUser, "u1", "admin")
	if !faults.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestAddMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	g := mustCreate(t, store, "eng")

	mustAddMember(t, store, g.ID, MemberUser, "u1")
	mustAddMember(t, store, g.ID, MemberUser, "u1")

	members, err := store.Members(ctx, g.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Expected a single membership row, got %d", len(members))
	}
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	g := mustCreate(t, store, "eng")
	mustAddMember(t, store, g.ID, MemberUser, "u1")

	if err := store.RemoveMember(ctx, g.ID, MemberUser, "u1"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	err := store.RemoveMember(ctx, g.ID, MemberUser, "u1")
	if !faults.IsNotFound(err) {
		t.Fatalf("Expected not found for a second removal, got %v", err)
	}
}

func TestDirectGroupsOfUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	a := mustCreate(t, store, "a")
	b := mustCreate(t, store, "b")
	mustCreate(t, store, "c")

	mustAddMember(t, store, a.ID, MemberUser, "u1")
	mustAddMember(t, store, b.ID, MemberUser, "u1")

	groups, err := store.DirectGroupsOfUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DirectGroupsOfUser failed: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("Expected 2 direct groups, got %v", groups)
	}
}
