package types

import (
  "time"

  "github.com/google/uuid"

  "github.com/yungbote/arbor/closure"
)

// Category is the demo node type served by arbord. It binds to the closure
// engine through the accessor methods below.
type Category struct {
  ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ParentID  *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id"`
  Name      string     `gorm:"not null;column:name" json:"name"`
  Position  int32      `gorm:"not null;default:0;column:position" json:"position"`
  CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Category) TableName() string {
  return "category"
}

func (c *Category) NodeID() uuid.UUID          { return c.ID }
func (c *Category) NodeParentID() *uuid.UUID   { return c.ParentID }
func (c *Category) NodeName() string           { return c.Name }
func (c *Category) SetNodeParentID(id *uuid.UUID) { c.ParentID = id }
func (c *Category) SetNodeName(name string)    { c.Name = name }

// CategoryHierarchy is the closure row type paired with Category. The
// (ancestor, descendant) pair is the primary key.
type CategoryHierarchy struct {
  AncestorID   uuid.UUID `gorm:"type:uuid;primaryKey;column:ancestor_id" json:"ancestor_id"`
  DescendantID uuid.UUID `gorm:"type:uuid;primaryKey;column:descendant_id" json:"descendant_id"`
  Generations  int       `gorm:"not null;column:generations" json:"generations"`
}

func (CategoryHierarchy) TableName() string {
  return "category_hierarchy"
}

func (h *CategoryHierarchy) EdgeAncestorID() uuid.UUID   { return h.AncestorID }
func (h *CategoryHierarchy) EdgeDescendantID() uuid.UUID { return h.DescendantID }
func (h *CategoryHierarchy) EdgeGenerations() int        { return h.Generations }

func (h *CategoryHierarchy) SetEdge(ancestor, descendant uuid.UUID, generations int) {
  h.AncestorID = ancestor
  h.DescendantID = descendant
  h.Generations = generations
}

// CategoryRepository pins the closure engine's type parameters for the
// demo schema.
type CategoryRepository = closure.Repository[Category, CategoryHierarchy, uuid.UUID, *Category, *CategoryHierarchy]
