package closure

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the closure-tree query and mutation engine for one node
// type. It holds no state beyond its handles: every operation opens or
// reuses a transaction against the store and leaves nothing behind.
//
// T and H are the node and hierarchy-edge struct types, ID the identifier
// type; PT and PH bind their pointer types to the model contract.
type Repository[T any, H any, ID comparable, PT NodePtr[T, ID], PH EdgePtr[H, ID]] struct {
	db  *gorm.DB
	cfg Config
	log *zap.SugaredLogger
}

// NewRepository builds a repository over db for the tree described by cfg.
// A nil log disables logging.
func NewRepository[T any, H any, ID comparable, PT NodePtr[T, ID], PH EdgePtr[H, ID]](db *gorm.DB, cfg Config, log *zap.SugaredLogger) *Repository[T, H, ID, PT, PH] {
	cfg.validate()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Repository[T, H, ID, PT, PH]{
		db:  db,
		cfg: cfg,
		log: log.With("repo", cfg.EntityName),
	}
}

// Config returns the tree configuration the repository was built with.
func (r *Repository[T, H, ID, PT, PH]) Config() Config {
	return r.cfg
}

// ensurePostgres rejects any non-PostgreSQL connection before data is
// touched. A connection's backend is fixed for its lifetime, so there is
// nothing to re-check mid operation.
func (r *Repository[T, H, ID, PT, PH]) ensurePostgres(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return ErrUnsupportedBackend
	}
	return nil
}

func (r *Repository[T, H, ID, PT, PH]) nodeScope(conn *gorm.DB) *gorm.DB {
	q := conn.Model(PT(new(T)))
	if r.cfg.EntityTable != "" {
		q = q.Table(r.cfg.EntityTable)
	}
	return q
}

func (r *Repository[T, H, ID, PT, PH]) edgeScope(conn *gorm.DB) *gorm.DB {
	q := conn.Model(PH(new(H)))
	if r.cfg.HierarchyTable != "" {
		q = q.Table(r.cfg.HierarchyTable)
	}
	return q
}

// applyOrder appends the configured ordering: optional numeric column
// ascending, then the name column ascending as tiebreak. Callers rely on
// this order being stable across calls.
func (r *Repository[T, H, ID, PT, PH]) applyOrder(q *gorm.DB) *gorm.DB {
	if r.cfg.Order.NumericColumn != "" {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: r.cfg.Order.NumericColumn}})
	}
	return q.Order(clause.OrderByColumn{Column: clause.Column{Name: r.cfg.NameColumn}})
}

// Parent returns the node referenced by node's parent id, or nil for a
// root.
func (r *Repository[T, H, ID, PT, PH]) Parent(ctx context.Context, tx *gorm.DB, node PT) (PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}

	parentID := node.NodeParentID()
	if parentID == nil {
		return nil, nil
	}

	var row T
	err := r.nodeScope(transaction.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.IDColumn}, Value: *parentID}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStore("load parent", err)
	}
	return PT(&row), nil
}

// Children returns the direct children of node in the configured order.
func (r *Repository[T, H, ID, PT, PH]) Children(ctx context.Context, tx *gorm.DB, node PT) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}

	var rows []T
	q := r.nodeScope(transaction.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.ParentColumn}, Value: node.NodeID()})
	if err := r.applyOrder(q).Find(&rows).Error; err != nil {
		return nil, wrapStore("load children", err)
	}
	return asPtrs[T, ID, PT](rows), nil
}

// Roots returns every node without a parent in the configured order.
func (r *Repository[T, H, ID, PT, PH]) Roots(ctx context.Context, tx *gorm.DB) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}

	var rows []T
	q := r.nodeScope(transaction.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.ParentColumn}, Value: nil})
	if err := r.applyOrder(q).Find(&rows).Error; err != nil {
		return nil, wrapStore("load roots", err)
	}
	return asPtrs[T, ID, PT](rows), nil
}

// Descendants returns every node below node in the tree, excluding node
// itself, in the configured order.
func (r *Repository[T, H, ID, PT, PH]) Descendants(ctx context.Context, tx *gorm.DB, node PT) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}
	return r.descendantsOn(ctx, transaction, node.NodeID())
}

// SelfAndDescendants returns node followed by its descendants. The node is
// always first; the ordering contract applies to the rest.
func (r *Repository[T, H, ID, PT, PH]) SelfAndDescendants(ctx context.Context, tx *gorm.DB, node PT) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}

	descendants, err := r.descendantsOn(ctx, transaction, node.NodeID())
	if err != nil {
		return nil, err
	}
	return append([]PT{node}, descendants...), nil
}

// Ancestors returns every node above node in the tree, excluding node
// itself, in the configured order.
func (r *Repository[T, H, ID, PT, PH]) Ancestors(ctx context.Context, tx *gorm.DB, node PT) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}
	return r.ancestorsOn(ctx, transaction, node.NodeID())
}

// SelfAndAncestors returns node followed by its ancestors.
func (r *Repository[T, H, ID, PT, PH]) SelfAndAncestors(ctx context.Context, tx *gorm.DB, node PT) ([]PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}

	ancestors, err := r.ancestorsOn(ctx, transaction, node.NodeID())
	if err != nil {
		return nil, err
	}
	return append([]PT{node}, ancestors...), nil
}

// FindByPath walks segments left to right, each segment naming a child of
// the previous match (a root for the first). It returns nil as soon as a
// segment is unmatched, and nil for an empty path.
func (r *Repository[T, H, ID, PT, PH]) FindByPath(ctx context.Context, tx *gorm.DB, segments []string) (PT, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := r.ensurePostgres(transaction); err != nil {
		return nil, err
	}
	return r.findByPathOn(ctx, transaction, segments)
}

// FindOrCreateByPath walks segments like FindByPath but inserts a node,
// with its closure rows, for every unmatched segment. The whole walk runs
// in one transaction under the configured tree lock: either every missing
// node on the path is created, or none is.
func (r *Repository[T, H, ID, PT, PH]) FindOrCreateByPath(ctx context.Context, segments []string) (PT, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyPath
	}
	if err := r.ensurePostgres(r.db); err != nil {
		return nil, err
	}

	guard, err := acquireLockedTx(ctx, r.db, r.cfg.Lock, r.log)
	if err != nil {
		return nil, err
	}

	node, err := r.findOrCreateByPathOn(ctx, guard.conn(), segments)
	if err != nil {
		if rbErr := guard.rollback(); rbErr != nil {
			r.log.Errorw("rollback after failed path create", "error", rbErr)
		}
		return nil, err
	}
	if err := guard.commit(); err != nil {
		return nil, err
	}
	return node, nil
}

func (r *Repository[T, H, ID, PT, PH]) findByPathOn(ctx context.Context, conn *gorm.DB, segments []string) (PT, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	var parentID *ID
	var current PT
	for _, name := range segments {
		node, err := r.findChildByName(ctx, conn, parentID, name)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, nil
		}
		id := node.NodeID()
		parentID = &id
		current = node
	}
	return current, nil
}

func (r *Repository[T, H, ID, PT, PH]) findOrCreateByPathOn(ctx context.Context, conn *gorm.DB, segments []string) (PT, error) {
	var parentID *ID
	var current PT
	for _, name := range segments {
		node, err := r.findChildByName(ctx, conn, parentID, name)
		if err != nil {
			return nil, err
		}
		if node == nil {
			node, err = r.insertChild(ctx, conn, parentID, name)
			if err != nil {
				return nil, err
			}
		}
		id := node.NodeID()
		parentID = &id
		current = node
	}

	if current == nil {
		return nil, invariantf("path segments produced no node")
	}
	return current, nil
}

func (r *Repository[T, H, ID, PT, PH]) findChildByName(ctx context.Context, conn *gorm.DB, parentID *ID, name string) (PT, error) {
	q := r.nodeScope(conn.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.NameColumn}, Value: name})
	if parentID != nil {
		q = q.Where(clause.Eq{Column: clause.Column{Name: r.cfg.ParentColumn}, Value: *parentID})
	} else {
		q = q.Where(clause.Eq{Column: clause.Column{Name: r.cfg.ParentColumn}, Value: nil})
	}

	var row T
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStore("find child by name", err)
	}
	return PT(&row), nil
}

func (r *Repository[T, H, ID, PT, PH]) insertChild(ctx context.Context, conn *gorm.DB, parentID *ID, name string) (PT, error) {
	var row T
	node := PT(&row)
	node.SetNodeParentID(parentID)
	node.SetNodeName(name)

	q := conn.WithContext(ctx)
	if r.cfg.EntityTable != "" {
		q = q.Table(r.cfg.EntityTable)
	}
	if err := q.Create(node).Error; err != nil {
		return nil, wrapStore("insert node", err)
	}
	if err := r.insertHierarchyRows(ctx, conn, node.NodeID(), parentID); err != nil {
		return nil, err
	}

	r.log.Debugw("created tree node", "name", name, "root", parentID == nil)
	return node, nil
}

// insertHierarchyRows materializes the closure rows for one new node: its
// self edge plus, for every edge ending at the parent, the same ancestor
// one generation further out. One query, one multi-row insert.
func (r *Repository[T, H, ID, PT, PH]) insertHierarchyRows(ctx context.Context, conn *gorm.DB, id ID, parentID *ID) error {
	var rows []H

	var self H
	PH(&self).SetEdge(id, id, 0)
	rows = append(rows, self)

	if parentID != nil {
		var parentEdges []H
		err := r.edgeScope(conn.WithContext(ctx)).
			Where(clause.Eq{Column: clause.Column{Name: r.cfg.DescendantColumn}, Value: *parentID}).
			Find(&parentEdges).Error
		if err != nil {
			return wrapStore("load parent ancestry", err)
		}
		if len(parentEdges) == 0 {
			return invariantf("parent node has no hierarchy rows")
		}
		for i := range parentEdges {
			edge := PH(&parentEdges[i])
			var row H
			PH(&row).SetEdge(edge.EdgeAncestorID(), id, edge.EdgeGenerations()+1)
			rows = append(rows, row)
		}
	}

	q := conn.WithContext(ctx)
	if r.cfg.HierarchyTable != "" {
		q = q.Table(r.cfg.HierarchyTable)
	}
	if err := q.Create(&rows).Error; err != nil {
		return wrapStore("insert hierarchy rows", err)
	}
	return nil
}

// descendantsOn resolves descendants in two steps: collect descendant ids
// from the hierarchy table, then load the node rows in the configured
// order. No second query runs when the id set is empty.
func (r *Repository[T, H, ID, PT, PH]) descendantsOn(ctx context.Context, conn *gorm.DB, id ID) ([]PT, error) {
	var edges []H
	err := r.edgeScope(conn.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.AncestorColumn}, Value: id}).
		Where(clause.Gt{Column: clause.Column{Name: r.cfg.GenerationsColumn}, Value: 0}).
		Find(&edges).Error
	if err != nil {
		return nil, wrapStore("load descendant edges", err)
	}

	ids := make([]any, 0, len(edges))
	for i := range edges {
		ids = append(ids, PH(&edges[i]).EdgeDescendantID())
	}
	return r.nodesByIDs(ctx, conn, ids, "load descendants")
}

// ancestorsOn mirrors descendantsOn with the edge direction flipped.
func (r *Repository[T, H, ID, PT, PH]) ancestorsOn(ctx context.Context, conn *gorm.DB, id ID) ([]PT, error) {
	var edges []H
	err := r.edgeScope(conn.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.DescendantColumn}, Value: id}).
		Where(clause.Gt{Column: clause.Column{Name: r.cfg.GenerationsColumn}, Value: 0}).
		Find(&edges).Error
	if err != nil {
		return nil, wrapStore("load ancestor edges", err)
	}

	ids := make([]any, 0, len(edges))
	for i := range edges {
		ids = append(ids, PH(&edges[i]).EdgeAncestorID())
	}
	return r.nodesByIDs(ctx, conn, ids, "load ancestors")
}

func (r *Repository[T, H, ID, PT, PH]) nodesByIDs(ctx context.Context, conn *gorm.DB, ids []any, action string) ([]PT, error) {
	if len(ids) == 0 {
		return []PT{}, nil
	}

	var rows []T
	q := r.nodeScope(conn.WithContext(ctx)).
		Where(clause.IN{Column: clause.Column{Name: r.cfg.IDColumn}, Values: ids})
	if err := r.applyOrder(q).Find(&rows).Error; err != nil {
		return nil, wrapStore(action, err)
	}
	return asPtrs[T, ID, PT](rows), nil
}

func asPtrs[T any, ID comparable, PT NodePtr[T, ID]](rows []T) []PT {
	out := make([]PT, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out
}
