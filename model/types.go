package model

import (
	"fmt"
	"strings"
)

// Item is a catalog metadata record to be grouped.
//
// Items are immutable once loaded; stages that need derived data (for example
// normalized vectors) work on copies.
type Item struct {
	ID             int64
	VariableName   string
	ValueFormat    string // empty means missing
	Title          string
	Description    string
	AlternateNames []string
	Embedding      []float32
}

// SemanticText concatenates the descriptive attributes of the item.
// Embedders use it as the text to encode.
func (it Item) SemanticText() string {
	parts := make([]string, 0, 2+len(it.AlternateNames))
	for _, s := range append([]string{it.Title, it.Description}, it.AlternateNames...) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// String returns a short representation of the item.
func (it Item) String() string {
	return fmt.Sprintf("Item(%d:%s)", it.ID, it.VariableName)
}

// GroupType is the kind of a SubGroup.
type GroupType string

const (
	// GroupHubAndSpoke is a hub item plus its strongest neighbors.
	GroupHubAndSpoke GroupType = "hub_and_spoke"
	// GroupOrphan is an unordered batch without a designated hub.
	GroupOrphan GroupType = "orphan"
)

// SubGroup is a bounded-size partition cell within a Community.
type SubGroup struct {
	GroupID   string    `json:"group_id"`
	GroupType GroupType `json:"group_type"`
	HubID     *int64    `json:"hub_cde_id,omitempty"`
	MemberIDs []int64   `json:"member_cde_ids"`
}

// Size returns the number of members.
func (g SubGroup) Size() int { return len(g.MemberIDs) }

// Community is a coarse partition cell produced by modularity optimization.
type Community struct {
	CommunityID string     `json:"community_id"`
	TotalCount  int        `json:"total_cde_count"`
	MemberIDs   []int64    `json:"member_cde_ids"`
	SubGroups   []SubGroup `json:"sub_groups"`
}

// CommunityID formats a community identifier.
func CommunityID(n int) string { return fmt.Sprintf("comm_%d", n) }

// GroupID formats a sub-group identifier.
func GroupID(n int) string { return fmt.Sprintf("grp_%d", n) }
