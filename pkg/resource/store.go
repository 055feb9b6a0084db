package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-graph/lattice/pkg/faults"
	"github.com/lattice-graph/lattice/pkg/observability"
)

// maxChainLength bounds chain walks against pathological or corrupted data
const maxChainLength = 100000

var allowedTables = map[string]bool{
	TableEntities: true,
	TableLinks:    true,
}

// Store persists one protected resource kind as an append-only version
// chain. Updates, deletes, and restores all append a new row and flip the
// old latest row's flag in the same transaction; no row is ever mutated
// after the flip.
//
// The flip is conditional (WHERE is_latest = TRUE): when two callers race to
// supersede the same row, exactly one transaction wins and the loser gets a
// Conflict instead of a second is_latest row on the chain.
type Store struct {
	db      *sql.DB
	table   string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewStore creates a store over one of the protected resource tables
func NewStore(db *sql.DB, table string, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	if !allowedTables[table] {
		return nil, fmt.Errorf("unknown resource table %q", table)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Store{db: db, table: table, logger: logger, metrics: metrics}, nil
}

// Create starts a new version chain: version 1, no previous row, latest and
// not deleted.
func (s *Store) Create(ctx context.Context, props map[string]interface{}, aclID *string, creatorID string) (*Record, error) {
	start := time.Now()

	rec := &Record{
		ID:         uuid.NewString(),
		Version:    1,
		IsLatest:   true,
		IsDeleted:  false,
		ACLID:      aclID,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  creatorID,
		Properties: props,
	}

	propsJSON, err := json.Marshal(rec.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.table), rec.ID, rec.Version, nil, rec.IsLatest, rec.IsDeleted, rec.ACLID, rec.CreatedAt, rec.CreatedBy, string(propsJSON))
	s.metrics.ObserveStorageOperation(s.table+"_create", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.table, err)
	}

	s.metrics.VersionAppendsTotal.WithLabelValues(s.table, "create").Inc()
	return rec, nil
}

// Update appends a new version with the given properties and ACL reference.
// The current row must be the chain's latest and not deleted; a deleted
// resource must be restored first.
func (s *Store) Update(ctx context.Context, current *Record, props map[string]interface{}, aclID *string, userID string) (*Record, error) {
	if current.IsDeleted {
		return nil, faults.Conflict("%s %s is deleted; restore it before updating", kindOf(s.table), current.ID)
	}
	return s.append(ctx, current, props, aclID, false, userID, "update")
}

// Delete appends a tombstone version carrying the current properties with
// is_deleted set. Deleting an already deleted resource is a Conflict.
func (s *Store) Delete(ctx context.Context, anyID, userID string) (*Record, error) {
	current, err := s.FindLatest(ctx, anyID)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return nil, faults.Conflict("%s %s is already deleted", kindOf(s.table), anyID)
	}
	return s.append(ctx, current, current.Properties, current.ACLID, true, userID, "delete")
}

// Restore appends a version clearing the deleted flag. Restoring a resource
// that is not deleted is a Conflict.
func (s *Store) Restore(ctx context.Context, anyID, userID string) (*Record, error) {
	current, err := s.FindLatest(ctx, anyID)
	if err != nil {
		return nil, err
	}
	if !current.IsDeleted {
		return nil, faults.Conflict("%s %s is not deleted", kindOf(s.table), anyID)
	}
	return s.append(ctx, current, current.Properties, current.ACLID, false, userID, "restore")
}

// append is the shared write path: flip the old latest row conditionally,
// insert the successor, commit both or neither.
func (s *Store) append(ctx context.Context, current *Record, props map[string]interface{}, aclID *string, isDeleted bool, userID, kind string) (*Record, error) {
	start := time.Now()

	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET is_latest = FALSE WHERE id = $1 AND is_latest = TRUE
	`, s.table), current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede latest row: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.metrics.VersionAppendConflicts.Inc()
		return nil, faults.Conflict("%s %s was modified concurrently", kindOf(s.table), current.ID)
	}

	prevID := current.ID
	rec := &Record{
		ID:                uuid.NewString(),
		Version:           current.Version + 1,
		PreviousVersionID: &prevID,
		IsLatest:          true,
		IsDeleted:         isDeleted,
		ACLID:             aclID,
		CreatedAt:         time.Now().UTC(),
		CreatedBy:         userID,
		Properties:        props,
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.table), rec.ID, rec.Version, rec.PreviousVersionID, rec.IsLatest, rec.IsDeleted, rec.ACLID, rec.CreatedAt, rec.CreatedBy, string(propsJSON)); err != nil {
		return nil, fmt.Errorf("failed to insert version row: %w", err)
	}

	err = tx.Commit()
	s.metrics.ObserveStorageOperation(s.table+"_append", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to commit version append: %w", err)
	}

	s.metrics.VersionAppendsTotal.WithLabelValues(s.table, kind).Inc()
	return rec, nil
}

// Get returns the row with the given id at whatever position it holds in
// its chain.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.scanOne(ctx, fmt.Sprintf(`
		SELECT id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload
		FROM %s WHERE id = $1
	`, s.table), id)
}

// FindLatest resolves the current row of the chain containing the given id.
// The id may be any historical version: a direct is_latest lookup is tried
// first, then the chain is walked forward through previous_version_id
// back-references. External callers can therefore keep using a resource's
// original id indefinitely.
func (s *Store) FindLatest(ctx context.Context, anyID string) (*Record, error) {
	rec, err := s.scanOne(ctx, fmt.Sprintf(`
		SELECT id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload
		FROM %s WHERE id = $1 AND is_latest = TRUE
	`, s.table), anyID)
	if err == nil {
		return rec, nil
	}
	if !faults.IsNotFound(err) {
		return nil, err
	}

	// Stale or historical id: confirm the row exists, then walk toward the
	// chain tip.
	current, err := s.Get(ctx, anyID)
	if err != nil {
		return nil, err
	}

	s.metrics.VersionChainWalks.Inc()
	visited := map[string]bool{current.ID: true}
	for i := 0; i < maxChainLength; i++ {
		if current.IsLatest {
			return current, nil
		}
		next, err := s.successorOf(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if next == nil || visited[next.ID] {
			// Chain tip without the latest flag; only reachable if stored
			// data is inconsistent. Surface the tip rather than failing.
			s.logger.WithField("id", current.ID).Warn("version chain tip is not flagged latest")
			return current, nil
		}
		visited[next.ID] = true
		current = next
	}
	return nil, fmt.Errorf("version chain for %s exceeds %d rows", anyID, maxChainLength)
}

// AllVersions returns every row of the chain containing the given id,
// ordered by version ascending. The id may reference any point in the
// chain; the walk first backtracks to the version-1 row, then collects
// forward.
func (s *Store) AllVersions(ctx context.Context, anyID string) ([]*Record, error) {
	current, err := s.Get(ctx, anyID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{current.ID: true}
	for current.PreviousVersionID != nil {
		prev, err := s.Get(ctx, *current.PreviousVersionID)
		if err != nil {
			if faults.IsNotFound(err) {
				return nil, fmt.Errorf("version chain for %s is broken at %s: %w", anyID, *current.PreviousVersionID, err)
			}
			return nil, err
		}
		if visited[prev.ID] {
			return nil, fmt.Errorf("version chain for %s contains a loop at %s", anyID, prev.ID)
		}
		visited[prev.ID] = true
		current = prev
	}

	versions := []*Record{current}
	for i := 0; i < maxChainLength; i++ {
		next, err := s.successorOf(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		if visited[next.ID] && next.ID != versions[len(versions)-1].ID {
			return nil, fmt.Errorf("version chain for %s contains a loop at %s", anyID, next.ID)
		}
		visited[next.ID] = true
		versions = append(versions, next)
		current = next
	}

	return versions, nil
}

// ListLatest returns the current, non-deleted row of every chain, optionally
// restricted by an extra WHERE condition. The condition's placeholders must
// be numbered from $1 to match args; callers building access filters pass
// argOffset 0 for that reason.
func (s *Store) ListLatest(ctx context.Context, extraClause string, args []interface{}) ([]*Record, error) {
	query := fmt.Sprintf(`
		SELECT id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload
		FROM %s WHERE is_latest = TRUE AND is_deleted = FALSE
	`, s.table)
	if extraClause != "" {
		query += " AND " + extraClause
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var propsJSON string
		if err := rows.Scan(
			&rec.ID,
			&rec.Version,
			&rec.PreviousVersionID,
			&rec.IsLatest,
			&rec.IsDeleted,
			&rec.ACLID,
			&rec.CreatedAt,
			&rec.CreatedBy,
			&propsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.table, err)
		}
		if err := json.Unmarshal([]byte(propsJSON), &rec.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties of %s: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) successorOf(ctx context.Context, id string) (*Record, error) {
	rec, err := s.scanOne(ctx, fmt.Sprintf(`
		SELECT id, version, previous_version_id, is_latest, is_deleted, acl_id, created_at, created_by, payload
		FROM %s WHERE previous_version_id = $1
	`, s.table), id)
	if faults.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) scanOne(ctx context.Context, query, arg string) (*Record, error) {
	var rec Record
	var propsJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.Version,
		&rec.PreviousVersionID,
		&rec.IsLatest,
		&rec.IsDeleted,
		&rec.ACLID,
		&rec.CreatedAt,
		&rec.CreatedBy,
		&propsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, faults.NotFound(kindOf(s.table), arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}

	if err := json.Unmarshal([]byte(propsJSON), &rec.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func kindOf(table string) string {
	switch table {
	case TableEntities:
		return "entity"
	case TableLinks:
		return "link"
	default:
		return table
	}
}
