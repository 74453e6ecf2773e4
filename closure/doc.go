// Package closure maintains a closure table for tree-shaped records stored
// through GORM on PostgreSQL.
//
// For every node the package keeps one row per (ancestor, descendant) pair,
// including the self pair at distance zero, so subtrees and ancestor chains
// are single-table scans instead of recursive traversals. Writes pay for
// that: inserting a node also inserts one hierarchy row per ancestor.
//
// # Repository
//
// [Repository] is a stateless query engine parameterized over a concrete
// node struct, its paired hierarchy-edge struct, and the identifier type:
//
//	repo := closure.NewRepository[Category, CategoryHierarchy, uuid.UUID,
//	    *Category, *CategoryHierarchy](db, cfg, log)
//
// It exposes Parent, Children, Roots, Ancestors, SelfAndAncestors,
// Descendants, SelfAndDescendants, FindByPath and FindOrCreateByPath.
//
// # Concurrency
//
// FindOrCreateByPath runs lookup-then-insert sequences that are not safe
// under concurrent callers on their own. Each call therefore takes a named
// PostgreSQL advisory lock scoped to one logical tree for the duration of
// its transaction, so two callers racing to materialize the same path
// serialize instead of both inserting. The lock is whole-tree on purpose;
// tree mutations are assumed rare next to reads, which never lock.
//
// # Model binding
//
// Concrete record types plug in through the [Node] and [Edge] interfaces;
// see [Config] for column and table naming. Only PostgreSQL connections are
// supported: every operation fails with [ErrUnsupportedBackend] on any
// other GORM dialector before touching data.
package closure
