package acl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lattice-graph/lattice/pkg/faults"
)

// entryCacheSize bounds the in-process entry cache. ACL rows are immutable
// once written, so cached entry lists never go stale.
const entryCacheSize = 4096

// Store persists canonical ACLs and their entries. ACLs are created once and
// never mutated; new permission sets produce new rows and old ones become
// orphaned but stay resolvable by hash.
type Store struct {
	db      *sql.DB
	entries *lru.Cache[string, []Entry]
}

// NewStore creates an ACL store on the given database handle
func NewStore(db *sql.DB) *Store {
	cache, _ := lru.New[string, []Entry](entryCacheSize)
	return &Store{db: db, entries: cache}
}

// GetOrCreate deduplicates and hashes the entry set, then returns the id of
// the existing ACL with that hash or inserts a new ACL row plus its entries
// as one transaction. An empty input means "public" and yields a nil id.
func (s *Store) GetOrCreate(ctx context.Context, entries []Entry) (*string, error) {
	canonical := Deduplicate(entries)
	if len(canonical) == 0 {
		return nil, nil
	}
	for _, e := range canonical {
		if !e.Permission.Valid() {
			return nil, faults.Validation([]string{fmt.Sprintf("invalid permission %q", e.Permission)})
		}
	}

	hash := ComputeHash(canonical)

	if id, err := s.idByHash(ctx, hash); err != nil {
		return nil, err
	} else if id != nil {
		return id, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO acls (id, hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO NOTHING
	`, id, hash, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert acl: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost a create race; the winner's row carries our hash.
		return s.idByHash(ctx, hash)
	}

	for _, e := range canonical {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO acl_entries (acl_id, principal_type, principal_id, permission)
			VALUES ($1, $2, $3, $4)
		`, id, string(e.PrincipalType), e.PrincipalID, string(e.Permission)); err != nil {
			return nil, fmt.Errorf("failed to insert acl entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit acl: %w", err)
	}

	s.entries.Add(id, canonical)
	return &id, nil
}

// CreateForNewResource derives the ACL for a freshly created resource. A nil
// entries slice means the caller supplied nothing: the resource gets a
// creator-only write grant. An empty non-nil slice means explicitly public
// (nil id). Any other list is guaranteed to contain a creator write entry,
// prepended when absent, before passing through GetOrCreate.
func (s *Store) CreateForNewResource(ctx context.Context, creatorID string, entries []Entry) (*string, error) {
	if entries == nil {
		return s.GetOrCreate(ctx, []Entry{{
			PrincipalType: PrincipalUser,
			PrincipalID:   creatorID,
			Permission:    PermissionWrite,
		}})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	hasCreatorWrite := false
	for _, e := range entries {
		if e.PrincipalType == PrincipalUser && e.PrincipalID == creatorID && e.Permission == PermissionWrite {
			hasCreatorWrite = true
			break
		}
	}
	if !hasCreatorWrite {
		entries = append([]Entry{{
			PrincipalType: PrincipalUser,
			PrincipalID:   creatorID,
			Permission:    PermissionWrite,
		}}, entries...)
	}

	return s.GetOrCreate(ctx, entries)
}

// Get retrieves an ACL row by id
func (s *Store) Get(ctx context.Context, id string) (*ACL, error) {
	var a ACL
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hash, created_at FROM acls WHERE id = $1
	`, id).Scan(&a.ID, &a.Hash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, faults.NotFound("acl", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acl: %w", err)
	}
	return &a, nil
}

// GetByHash retrieves an ACL row by its canonical hash
func (s *Store) GetByHash(ctx context.Context, hash string) (*ACL, error) {
	var a ACL
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hash, created_at FROM acls WHERE hash = $1
	`, hash).Scan(&a.ID, &a.Hash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, faults.NotFound("acl", hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acl by hash: %w", err)
	}
	return &a, nil
}

// GetEntries returns the entries of an ACL in canonical order
func (s *Store) GetEntries(ctx context.Context, aclID string) ([]Entry, error) {
	if cached, ok := s.entries.Get(aclID); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT principal_type, principal_id, permission
		FROM acl_entries
		WHERE acl_id = $1
		ORDER BY principal_type, principal_id, permission
	`, aclID)
	if err != nil {
		return nil, fmt.Errorf("failed to query acl entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PrincipalType, &e.PrincipalID, &e.Permission); err != nil {
			return nil, fmt.Errorf("failed to scan acl entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read acl entries: %w", err)
	}

	// A stored ACL always has at least one entry (the empty set maps to a
	// nil acl id), so zero rows means the id does not exist.
	if len(entries) == 0 {
		if _, err := s.Get(ctx, aclID); err != nil {
			return nil, err
		}
	}

	s.entries.Add(aclID, entries)
	return entries, nil
}

// GetEnrichedEntries returns the entries of an ACL annotated with principal
// display names and emails, resolved with one batched lookup per principal
// type.
func (s *Store) GetEnrichedEntries(ctx context.Context, aclID string) ([]EnrichedEntry, error) {
	entries, err := s.GetEntries(ctx, aclID)
	if err != nil {
		return nil, err
	}

	var userIDs, groupIDs []string
	for _, e := range entries {
		switch e.PrincipalType {
		case PrincipalUser:
			userIDs = append(userIDs, e.PrincipalID)
		case PrincipalGroup:
			groupIDs = append(groupIDs, e.PrincipalID)
		}
	}

	users, err := s.lookupUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	groups, err := s.lookupGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedEntry, 0, len(entries))
	for _, e := range entries {
		ee := EnrichedEntry{Entry: e}
		switch e.PrincipalType {
		case PrincipalUser:
			if u, ok := users[e.PrincipalID]; ok {
				ee.DisplayName = u.name
				ee.Email = u.email
			}
		case PrincipalGroup:
			if name, ok := groups[e.PrincipalID]; ok {
				ee.DisplayName = name
			}
		}
		enriched = append(enriched, ee)
	}
	return enriched, nil
}

// ValidatePrincipals checks that every referenced user and group exists.
// Every invalid id is reported; the result is returned as data rather than
// an error so callers can render precise messages.
func (s *Store) ValidatePrincipals(ctx context.Context, entries []Entry) (*ValidationResult, error) {
	var userIDs, groupIDs []string
	var errs []string
	for _, e := range entries {
		switch e.PrincipalType {
		case PrincipalUser:
			userIDs = append(userIDs, e.PrincipalID)
		case PrincipalGroup:
			groupIDs = append(groupIDs, e.PrincipalID)
		default:
			errs = append(errs, fmt.Sprintf("invalid principal type %q", e.PrincipalType))
		}
		if !e.Permission.Valid() {
			errs = append(errs, fmt.Sprintf("invalid permission %q for principal %s", e.Permission, e.PrincipalID))
		}
	}

	users, err := s.lookupUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	groups, err := s.lookupGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	reported := make(map[string]bool)
	for _, id := range userIDs {
		if _, ok := users[id]; !ok && !reported["u:"+id] {
			errs = append(errs, fmt.Sprintf("user %s does not exist", id))
			reported["u:"+id] = true
		}
	}
	for _, id := range groupIDs {
		if _, ok := groups[id]; !ok && !reported["g:"+id] {
			errs = append(errs, fmt.Sprintf("group %s does not exist", id))
			reported["g:"+id] = true
		}
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// IDsGrantedTo returns the distinct set of ACL ids holding an entry that
// grants the requested permission to the user or to any of the given groups.
// Write entries satisfy read requests.
func (s *Store) IDsGrantedTo(ctx context.Context, userID string, groupIDs []string, permission Permission) ([]string, error) {
	if userID == "" && len(groupIDs) == 0 {
		return nil, nil
	}

	permissions := []string{string(permission)}
	if permission == PermissionRead {
		permissions = append(permissions, string(PermissionWrite))
	}

	var conditions []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	permPlaceholders := make([]string, len(permissions))
	for i, p := range permissions {
		permPlaceholders[i] = next(p)
	}

	if userID != "" {
		conditions = append(conditions,
			fmt.Sprintf("(principal_type = 'user' AND principal_id = %s)", next(userID)))
	}
	if len(groupIDs) > 0 {
		placeholders := make([]string, len(groupIDs))
		for i, g := range groupIDs {
			placeholders[i] = next(g)
		}
		conditions = append(conditions,
			fmt.Sprintf("(principal_type = 'group' AND principal_id IN (%s))", strings.Join(placeholders, ", ")))
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT acl_id FROM acl_entries
		WHERE permission IN (%s) AND (%s)
	`, strings.Join(permPlaceholders, ", "), strings.Join(conditions, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accessible acls: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan acl id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type userInfo struct {
	name  string
	email string
}

func (s *Store) lookupUsers(ctx context.Context, ids []string) (map[string]userInfo, error) {
	out := make(map[string]userInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, display_name, email FROM users WHERE id IN (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var info userInfo
		if err := rows.Scan(&id, &info.name, &info.email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out[id] = info
	}
	return out, rows.Err()
}

func (s *Store) lookupGroups(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name FROM groups WHERE id IN (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *Store) idByHash(ctx context.Context, hash string) (*string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM acls WHERE hash = $1`, hash).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up acl by hash: %w", err)
	}
	return &id, nil
}
