package group

import (
	"time"
)

// MaxNestingDepth is the maximum depth of the group containment graph. The
// cycle guard also treats reaching this depth as a cycle to bound traversal.
const MaxNestingDepth = 10

// MemberType identifies what kind of member a membership edge points at
type MemberType string

const (
	MemberUser  MemberType = "user"
	MemberGroup MemberType = "group"
)

// Group is a named principal that can hold users and other groups
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Membership is a directed edge: the group contains the member. Edges with
// MemberGroup form the containment graph; edges with MemberUser are its
// leaves.
type Membership struct {
	GroupID    string     `json:"group_id"`
	MemberType MemberType `json:"member_type"`
	MemberID   string     `json:"member_id"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
}
