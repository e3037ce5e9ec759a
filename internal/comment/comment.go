// Package comment stores comments flat and rebuilds them into threads.
package comment

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// commentable maps entity types to the table holding them.
var commentable = map[string]string{
	"appraisal": "appraisals",
	"candidate": "candidates",
	"employee":  "employees",
	"goal":      "goals",
	"interview": "interviews",
	"lead":      "leads",
	"offer":     "offers",
	"project":   "projects",
	"sprint":    "sprints",
}

// Node is a comment with its replies. Deleted comments that still have live
// replies stay in the tree with an empty body.
type Node struct {
	models.Comment
	Deleted bool    `json:"deleted,omitempty"`
	Replies []*Node `json:"replies"`
}

// Service stores comments and assembles threads.
type Service struct {
	db *gorm.DB
}

// NewService returns a comment Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create validates the target entity and parent, then inserts c.
func (s *Service) Create(ctx context.Context, tenantID, authorID uint, c *models.Comment) error {
	table, ok := commentable[c.EntityType]
	if !ok {
		return apperr.Invalid("entity_type", "%q does not accept comments", c.EntityType)
	}
	var n int64
	err := s.db.WithContext(ctx).Table(table).
		Where("id = ? AND tenant_id = ? AND is_deleted = ?", c.EntityID, tenantID, false).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("check %s: %w", c.EntityType, err)
	}
	if n == 0 {
		return apperr.Invalid("entity_id", "%s %d does not exist", c.EntityType, c.EntityID)
	}

	if c.ParentID != nil {
		parent, err := store.New[models.Comment](s.db, nil).Get(ctx, tenantID, *c.ParentID, nil)
		if err != nil {
			return apperr.Invalid("parent_id", "comment %d does not exist", *c.ParentID)
		}
		if parent.EntityType != c.EntityType || parent.EntityID != c.EntityID {
			return apperr.Invalid("parent_id", "comment %d belongs to another %s", parent.ID, parent.EntityType)
		}
	}

	c.ID = 0
	c.OwnerID = &authorID
	return store.New[models.Comment](s.db, nil).Create(ctx, tenantID, c)
}

// Thread returns the comment tree of one entity.
func (s *Service) Thread(ctx context.Context, tenantID uint, entityType string, entityID uint) ([]*Node, error) {
	var all []models.Comment
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("created_at asc, id asc").
		Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	return BuildThread(all), nil
}

// BuildThread arranges comments into trees. Input order decides reply order.
// A comment is attached to its parent only if the parent appears earlier in
// the input; otherwise, or if the parent is missing, it becomes a root.
func BuildThread(comments []models.Comment) []*Node {
	nodes := make(map[uint]*Node, len(comments))
	var roots []*Node
	for _, c := range comments {
		n := &Node{Comment: c, Deleted: c.IsDeleted, Replies: []*Node{}}
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, n)
				nodes[c.ID] = n
				continue
			}
		}
		nodes[c.ID] = n
		roots = append(roots, n)
	}
	return prune(roots)
}

// prune drops deleted comments without live replies and blanks the rest.
func prune(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		n.Replies = prune(n.Replies)
		if n.Deleted {
			if len(n.Replies) == 0 {
				continue
			}
			n.Body = ""
		}
		out = append(out, n)
	}
	return out
}

// Count returns the number of live comments in a thread tree.
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		if !n.Deleted {
			total++
		}
		total += Count(n.Replies)
	}
	return total
}

// SortByActivity orders roots by their most recent reply, newest first.
func SortByActivity(roots []*Node) {
	latest := func(n *Node) int64 {
		var walk func(*Node) int64
		walk = func(n *Node) int64 {
			best := n.CreatedAt.UnixNano()
			for _, r := range n.Replies {
				if t := walk(r); t > best {
					best = t
				}
			}
			return best
		}
		return walk(n)
	}
	sort.SliceStable(roots, func(i, j int) bool { return latest(roots[i]) > latest(roots[j]) })
}
