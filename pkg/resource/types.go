package resource

import (
	"time"
)

// Table names for the two protected resource kinds. Store refuses anything
// else, since the table name is interpolated into query text.
const (
	TableEntities = "entities"
	TableLinks    = "links"
)

// Record is one immutable row in a resource's version chain. A logical
// resource is the chain of rows linked through PreviousVersionID; exactly
// one row per chain carries IsLatest at any consistent point.
type Record struct {
	ID                string                 `json:"id"`
	Version           int                    `json:"version"`
	PreviousVersionID *string                `json:"previous_version_id,omitempty"`
	IsLatest          bool                   `json:"is_latest"`
	IsDeleted         bool                   `json:"is_deleted"`
	ACLID             *string                `json:"acl_id,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	CreatedBy         string                 `json:"created_by"`
	Properties        map[string]interface{} `json:"properties"`
}

// ACLRef exposes the record's ACL reference for permission filtering. Nil
// means public.
func (r *Record) ACLRef() *string { return r.ACLID }
