package closure

import (
	"fmt"
	"hash/crc32"
)

// DependentBehavior is the policy applied to a node's descendants when the
// node is destroyed. No operation in this package deletes nodes yet; the
// policy is declared so bindings can state intent ahead of a delete API.
type DependentBehavior int

const (
	DependentNullify DependentBehavior = iota
	DependentDestroy
	DependentDeleteAll
	DependentNone
)

// OrderStrategy controls the deterministic ordering of Children, Roots,
// Ancestors and Descendants results. The zero value orders by name only.
type OrderStrategy struct {
	// NumericColumn, when set, sorts ascending by this column before the
	// name-column tiebreak.
	NumericColumn string
}

// OrderByNumericColumn orders results by the named numeric column
// ascending, then by name.
func OrderByNumericColumn(column string) OrderStrategy {
	return OrderStrategy{NumericColumn: column}
}

// LockStrategy controls mutual exclusion around FindOrCreateByPath. The
// zero value disables locking.
type LockStrategy struct {
	Key string
}

// NamespacedLock serializes find-or-create transactions on a named
// PostgreSQL advisory lock.
func NamespacedLock(key string) LockStrategy {
	return LockStrategy{Key: key}
}

// LockDisabled turns off mutual exclusion. Concurrent FindOrCreateByPath
// calls for the same tree may then race.
func LockDisabled() LockStrategy {
	return LockStrategy{}
}

func (s LockStrategy) Enabled() bool {
	return s.Key != ""
}

// DeriveLockKey builds the advisory-lock key for one logical tree:
// "<entity>::<hierarchy>::<8-hex crc32>". The hash suffix keeps keys
// collision-resistant without growing with the input names.
func DeriveLockKey(entityName, hierarchyName string) string {
	h := crc32.NewIEEE()
	h.Write([]byte(entityName))
	h.Write([]byte("/"))
	h.Write([]byte(hierarchyName))
	return fmt.Sprintf("%s::%s::%08x", entityName, hierarchyName, h.Sum32())
}

// Config describes the shape of one closure tree. Construct it with
// DefaultConfig, override exported fields as needed, and treat it as
// read-only once a Repository holds it.
type Config struct {
	// EntityName and HierarchyName are the logical names of the node and
	// edge record types. They seed the derived lock key.
	EntityName    string
	HierarchyName string

	// EntityTable and HierarchyTable override the table names GORM derives
	// from the bound model types. Usually left empty.
	EntityTable    string
	HierarchyTable string

	IDColumn     string
	ParentColumn string
	NameColumn   string

	AncestorColumn    string
	DescendantColumn  string
	GenerationsColumn string

	Dependent DependentBehavior
	Order     OrderStrategy
	Lock      LockStrategy
}

// DefaultConfig returns the conventional column layout: id/parent_id/name
// on the entity, ancestor_id/descendant_id/generations on the hierarchy,
// nullify-on-destroy, name-only ordering, and a namespaced advisory lock
// derived from the two logical names.
func DefaultConfig(entityName, hierarchyName string) Config {
	return Config{
		EntityName:        entityName,
		HierarchyName:     hierarchyName,
		IDColumn:          "id",
		ParentColumn:      "parent_id",
		NameColumn:        "name",
		AncestorColumn:    "ancestor_id",
		DescendantColumn:  "descendant_id",
		GenerationsColumn: "generations",
		Dependent:         DependentNullify,
		Lock:              NamespacedLock(DeriveLockKey(entityName, hierarchyName)),
	}
}

// validate back-fills zeroed column names so a partially hand-built Config
// still resolves to the conventional layout.
func (c *Config) validate() {
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.ParentColumn == "" {
		c.ParentColumn = "parent_id"
	}
	if c.NameColumn == "" {
		c.NameColumn = "name"
	}
	if c.AncestorColumn == "" {
		c.AncestorColumn = "ancestor_id"
	}
	if c.DescendantColumn == "" {
		c.DescendantColumn = "descendant_id"
	}
	if c.GenerationsColumn == "" {
		c.GenerationsColumn = "generations"
	}
}
