package engine

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lattice-graph/lattice/pkg/acl"
	"github.com/lattice-graph/lattice/pkg/cache"
	"github.com/lattice-graph/lattice/pkg/faults"
	"github.com/lattice-graph/lattice/pkg/group"
	"github.com/lattice-graph/lattice/pkg/resource"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE acls (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE acl_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			acl_id TEXT NOT NULL,
			principal_type TEXT NOT NULL,
			principal_id TEXT NOT NULL,
			permission TEXT NOT NULL,
			UNIQUE(acl_id, principal_type, principal_id, permission)
		);

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			email TEXT NOT NULL
		);

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

		CREATE TABLE entities (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			previous_version_id TEXT,
			is_latest BOOLEAN NOT NULL DEFAULT TRUE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			acl_id TEXT,
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}'
		);

		CREATE TABLE links (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			previous_version_id TEXT,
			is_latest BOOLEAN NOT NULL DEFAULT TRUE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			acl_id TEXT,
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}'
		);

		INSERT INTO users (id, display_name, email) VALUES
			('u1', 'User One', 'u1@example.com'),
			('u2', 'User Two', 'u2@example.com');
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(setupTestDB(t), nil, Options{})
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	return eng
}

func setupEngineWithCache(t *testing.T) *Engine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cacheClient := cache.New(rdb, nil, nil)
	t.Cleanup(func() { cacheClient.Close() })

	eng, err := New(setupTestDB(t), cacheClient, Options{})
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	return eng
}

func TestCreateResourceDefaultACLIsCreatorOnly(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "doc"}, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if rec.ACLID == nil {
		t.Fatal("Expected a creator-only acl, got public")
	}

	// The creator can update; another user with no overlap cannot.
	if _, err := eng.UpdateResource(ctx, resource.TableEntities, "u1", rec.ID, map[string]interface{}{"name": "doc2"}); err != nil {
		t.Fatalf("Creator update failed: %v", err)
	}

	_, err = eng.UpdateResource(ctx, resource.TableEntities, "u2", rec.ID, map[string]interface{}{"name": "hijack"})
	if !faults.IsForbidden(err) {
		t.Fatalf("Expected forbidden for a non-creator update, got %v", err)
	}
}

func TestCreateResourceExplicitPublic(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "open"}, []acl.Entry{})
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if rec.ACLID != nil {
		t.Fatal("Expected an explicitly public resource")
	}

	// Even an unauthenticated caller can read it.
	got, err := eng.GetResource(ctx, resource.TableEntities, "", rec.ID)
	if err != nil {
		t.Fatalf("Unauthenticated read of a public resource failed: %v", err)
	}
	if got.Properties["name"] != "open" {
		t.Errorf("Unexpected properties: %v", got.Properties)
	}
}

func TestCreateResourceUnauthenticated(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	_, err := eng.CreateResource(ctx, resource.TableEntities, "", nil, nil)
	if !faults.IsForbidden(err) {
		t.Fatalf("Expected forbidden for an unauthenticated create, got %v", err)
	}
}

func TestCreateResourceRejectsUnknownPrincipals(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	_, err := eng.CreateResource(ctx, resource.TableEntities, "u1", nil, []acl.Entry{
		{PrincipalType: acl.PrincipalUser, PrincipalID: "ghost", Permission: acl.PermissionRead},
	})
	if !faults.IsValidation(err) {
		t.Fatalf("Expected a validation error for an unknown principal, got %v", err)
	}
}

func TestGetResourceDeniedWithoutGrant(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", nil, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	_, err = eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID)
	if !faults.IsForbidden(err) {
		t.Fatalf("Expected forbidden, got %v", err)
	}
}

func TestReadGrantThroughNestedGroup(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	org, err := eng.CreateGroup(ctx, "u1", "org", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	team, err := eng.CreateGroup(ctx, "u1", "team", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := eng.AddGroupMember(ctx, "u1", org.ID, group.MemberGroup, team.ID); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}
	if err := eng.AddGroupMember(ctx, "u1", team.ID, group.MemberUser, "u2"); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "shared"}, []acl.Entry{
		{PrincipalType: acl.PrincipalGroup, PrincipalID: org.ID, Permission: acl.PermissionRead},
	})
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	// u2 reads through team -> org, but cannot write.
	if _, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID); err != nil {
		t.Fatalf("Expected the nested group grant to allow reading: %v", err)
	}
	_, err = eng.UpdateResource(ctx, resource.TableEntities, "u2", rec.ID, nil)
	if !faults.IsForbidden(err) {
		t.Fatalf("Expected a read grant to be insufficient for write, got %v", err)
	}
}

func TestDeleteRestoreHistory(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "doc"}, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	if _, err := eng.DeleteResource(ctx, resource.TableEntities, "u1", rec.ID); err != nil {
		t.Fatalf("DeleteResource failed: %v", err)
	}
	if _, err := eng.RestoreResource(ctx, resource.TableEntities, "u1", rec.ID); err != nil {
		t.Fatalf("RestoreResource failed: %v", err)
	}

	history, err := eng.ResourceHistory(ctx, resource.TableEntities, "u1", rec.ID)
	if err != nil {
		t.Fatalf("ResourceHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 versions, got %d", len(history))
	}

	deleted := []bool{history[0].Record.IsDeleted, history[1].Record.IsDeleted, history[2].Record.IsDeleted}
	if deleted[0] || !deleted[1] || deleted[2] {
		t.Errorf("Expected is_deleted sequence [false true false], got %v", deleted)
	}
	if !history[2].Record.IsLatest {
		t.Error("Expected the restored version to be latest")
	}
	if history[0].Diff != nil {
		t.Error("Expected no diff on the first version")
	}
	if history[1].Diff == nil || !history[1].Diff.Empty() {
		t.Errorf("Expected an empty diff across the delete, got %+v", history[1].Diff)
	}
}

func TestHistoryDiffsTrackPropertyChanges(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"a": "1"}, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if _, err := eng.UpdateResource(ctx, resource.TableEntities, "u1", rec.ID, map[string]interface{}{"a": "2", "b": "x"}); err != nil {
		t.Fatalf("UpdateResource failed: %v", err)
	}

	history, err := eng.ResourceHistory(ctx, resource.TableEntities, "u1", rec.ID)
	if err != nil {
		t.Fatalf("ResourceHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(history))
	}

	diff := history[1].Diff
	if diff == nil {
		t.Fatal("Expected a diff on the second version")
	}
	if len(diff.Added) != 1 || diff.Added["b"] != "x" {
		t.Errorf("Unexpected added set: %v", diff.Added)
	}
	if len(diff.Changed) != 1 || diff.Changed["a"].New != "2" {
		t.Errorf("Unexpected changed set: %v", diff.Changed)
	}
}

func TestSetResourceACLMakesPublic(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "doc"}, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	if _, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID); !faults.IsForbidden(err) {
		t.Fatalf("Expected u2 to start denied, got %v", err)
	}

	if _, err := eng.SetResourceACL(ctx, resource.TableEntities, "u1", rec.ID, nil); err != nil {
		t.Fatalf("SetResourceACL failed: %v", err)
	}

	got, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID)
	if err != nil {
		t.Fatalf("Expected u2 to read after the acl change: %v", err)
	}
	if got.ACLID != nil {
		t.Error("Expected the resource to be public")
	}
	if got.Properties["name"] != "doc" {
		t.Errorf("Expected properties preserved across the acl change, got %v", got.Properties)
	}
}

func TestListResourcesFiltersByAccess(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	if _, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "public"}, []acl.Entry{}); err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if _, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "mine"}, nil); err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if _, err := eng.CreateResource(ctx, resource.TableEntities, "u1", map[string]interface{}{"name": "shared"}, []acl.Entry{
		{PrincipalType: acl.PrincipalUser, PrincipalID: "u2", Permission: acl.PermissionRead},
	}); err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	names := func(rows []*resource.Record) map[string]bool {
		out := make(map[string]bool, len(rows))
		for _, r := range rows {
			out[r.Properties["name"].(string)] = true
		}
		return out
	}

	rows, err := eng.ListResources(ctx, resource.TableEntities, "u2")
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	got := names(rows)
	if len(got) != 2 || !got["public"] || !got["shared"] {
		t.Errorf("Expected u2 to see public and shared, got %v", got)
	}

	rows, err = eng.ListResources(ctx, resource.TableEntities, "")
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	got = names(rows)
	if len(got) != 1 || !got["public"] {
		t.Errorf("Expected an unauthenticated caller to see only public, got %v", got)
	}
}

func TestMembershipChangeInvalidatesCachedGroups(t *testing.T) {
	ctx := context.Background()
	eng := setupEngineWithCache(t)

	g, err := eng.CreateGroup(ctx, "u1", "readers", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", nil, []acl.Entry{
		{PrincipalType: acl.PrincipalGroup, PrincipalID: g.ID, Permission: acl.PermissionRead},
	})
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	// The denial primes the cache with u2's empty effective-group set.
	if _, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID); !faults.IsForbidden(err) {
		t.Fatalf("Expected u2 to start denied, got %v", err)
	}

	if err := eng.AddGroupMember(ctx, "u1", g.ID, group.MemberUser, "u2"); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}

	// The membership bump must invalidate the cached set immediately.
	if _, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID); err != nil {
		t.Fatalf("Expected access right after the membership change: %v", err)
	}

	if err := eng.RemoveGroupMember(ctx, "u1", g.ID, group.MemberUser, "u2"); err != nil {
		t.Fatalf("RemoveGroupMember failed: %v", err)
	}
	if _, err := eng.GetResource(ctx, resource.TableEntities, "u2", rec.ID); !faults.IsForbidden(err) {
		t.Fatalf("Expected denial right after removal, got %v", err)
	}
}

func TestCheckPermission(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	rec, err := eng.CreateResource(ctx, resource.TableEntities, "u1", nil, nil)
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	ok, err := eng.CheckPermission(ctx, resource.TableEntities, "u1", rec.ID, acl.PermissionWrite)
	if err != nil {
		t.Fatalf("CheckPermission failed: %v", err)
	}
	if !ok {
		t.Error("Expected the creator to hold write")
	}

	ok, err = eng.CheckPermission(ctx, resource.TableEntities, "u2", rec.ID, acl.PermissionRead)
	if err != nil {
		t.Fatalf("CheckPermission failed: %v", err)
	}
	if ok {
		t.Error("Expected u2 to hold nothing")
	}
}
