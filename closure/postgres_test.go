package closure

import (
	"context"
	"errors"
	"os"
	"testing"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Integration tests run against a real PostgreSQL database, because the
// engine rejects everything else. Set CLOSURE_TEST_DATABASE_URL (or
// DATABASE_URL) to enable them.

func pgConn(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("CLOSURE_TEST_DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("CLOSURE_TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.AutoMigrate(&testNode{}, &testEdge{}); err != nil {
		t.Fatalf("migrate test tables: %v", err)
	}
	if err := db.Exec("TRUNCATE TABLE closure_node_hierarchies, closure_nodes RESTART IDENTITY CASCADE").Error; err != nil {
		t.Fatalf("truncate test tables: %v", err)
	}
	return db
}

func defaultPGRepo(t *testing.T, db *gorm.DB) *testRepo {
	t.Helper()
	return newTestRepo(t, db, DefaultConfig("closure_nodes", "closure_node_hierarchies"))
}

func names(nodes []*testNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindOrCreateByPath_BuildsHierarchy(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	leaf, err := repo.FindOrCreateByPath(ctx, []string{"root", "child", "leaf"})
	if err != nil {
		t.Fatalf("create path: %v", err)
	}
	if leaf.Name != "leaf" {
		t.Fatalf("expected leaf node, got %q", leaf.Name)
	}

	var nodeCount, edgeCount int64
	if err := db.Model(&testNode{}).Count(&nodeCount).Error; err != nil {
		t.Fatalf("count nodes: %v", err)
	}
	if err := db.Model(&testEdge{}).Count(&edgeCount).Error; err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if nodeCount != 3 || edgeCount != 6 {
		t.Fatalf("expected 3 nodes and 6 edges, got %d and %d", nodeCount, edgeCount)
	}

	// Verify the exact closure set for the three-node chain.
	var nodes []testNode
	if err := db.Order("id").Find(&nodes).Error; err != nil {
		t.Fatalf("load nodes: %v", err)
	}
	byName := map[string]int32{}
	for _, n := range nodes {
		byName[n.Name] = n.ID
	}
	expected := map[[2]int32]int{
		{byName["root"], byName["root"]}:   0,
		{byName["root"], byName["child"]}:  1,
		{byName["root"], byName["leaf"]}:   2,
		{byName["child"], byName["child"]}: 0,
		{byName["child"], byName["leaf"]}:  1,
		{byName["leaf"], byName["leaf"]}:   0,
	}
	var edges []testEdge
	if err := db.Find(&edges).Error; err != nil {
		t.Fatalf("load edges: %v", err)
	}
	for _, e := range edges {
		want, ok := expected[[2]int32{e.AncestorID, e.DescendantID}]
		if !ok {
			t.Fatalf("unexpected edge (%d,%d,%d)", e.AncestorID, e.DescendantID, e.Generations)
		}
		if e.Generations != want {
			t.Fatalf("edge (%d,%d) has %d generations, want %d", e.AncestorID, e.DescendantID, e.Generations, want)
		}
	}

	root, err := repo.FindByPath(ctx, nil, []string{"root"})
	if err != nil || root == nil {
		t.Fatalf("find root: %v %v", root, err)
	}
	descendants, err := repo.Descendants(ctx, nil, root)
	if err != nil {
		t.Fatalf("descendants of root: %v", err)
	}
	if !equalStrings(names(descendants), []string{"child", "leaf"}) {
		t.Fatalf("descendants of root: %v", names(descendants))
	}

	child, err := repo.FindByPath(ctx, nil, []string{"root", "child"})
	if err != nil || child == nil {
		t.Fatalf("find child: %v %v", child, err)
	}
	childDescendants, err := repo.Descendants(ctx, nil, child)
	if err != nil {
		t.Fatalf("descendants of child: %v", err)
	}
	if !equalStrings(names(childDescendants), []string{"leaf"}) {
		t.Fatalf("descendants of child: %v", names(childDescendants))
	}
}

func TestFindOrCreateByPath_Idempotent(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	first, err := repo.FindOrCreateByPath(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := repo.FindOrCreateByPath(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same node, got ids %d and %d", first.ID, second.ID)
	}

	var nodeCount, edgeCount int64
	db.Model(&testNode{}).Count(&nodeCount)
	db.Model(&testEdge{}).Count(&edgeCount)
	if nodeCount != 2 || edgeCount != 3 {
		t.Fatalf("expected 2 nodes and 3 edges, got %d and %d", nodeCount, edgeCount)
	}
}

func TestFindByPath_RoundTripAndShortCircuit(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	created, err := repo.FindOrCreateByPath(ctx, []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("create path: %v", err)
	}

	found, err := repo.FindByPath(ctx, nil, []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("round trip mismatch: created %d found %+v", created.ID, found)
	}

	missing, err := repo.FindByPath(ctx, nil, []string{"x", "nope", "z"})
	if err != nil {
		t.Fatalf("find missing path: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unmatched segment, got %+v", missing)
	}

	empty, err := repo.FindByPath(ctx, nil, nil)
	if err != nil {
		t.Fatalf("find empty path: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil for empty path, got %+v", empty)
	}
}

func TestParentChildrenRoots(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	if _, err := repo.FindOrCreateByPath(ctx, []string{"fruit", "citrus"}); err != nil {
		t.Fatalf("create path: %v", err)
	}
	if _, err := repo.FindOrCreateByPath(ctx, []string{"fruit", "berry"}); err != nil {
		t.Fatalf("create path: %v", err)
	}
	if _, err := repo.FindOrCreateByPath(ctx, []string{"animal"}); err != nil {
		t.Fatalf("create path: %v", err)
	}

	roots, err := repo.Roots(ctx, nil)
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	if !equalStrings(names(roots), []string{"animal", "fruit"}) {
		t.Fatalf("roots: %v", names(roots))
	}

	fruit, err := repo.FindByPath(ctx, nil, []string{"fruit"})
	if err != nil || fruit == nil {
		t.Fatalf("find fruit: %v %v", fruit, err)
	}
	children, err := repo.Children(ctx, nil, fruit)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if !equalStrings(names(children), []string{"berry", "citrus"}) {
		t.Fatalf("children: %v", names(children))
	}

	berry := children[0]
	parent, err := repo.Parent(ctx, nil, berry)
	if err != nil {
		t.Fatalf("parent: %v", err)
	}
	if parent == nil || parent.ID != fruit.ID {
		t.Fatalf("parent of berry: %+v", parent)
	}

	rootParent, err := repo.Parent(ctx, nil, fruit)
	if err != nil {
		t.Fatalf("parent of root: %v", err)
	}
	if rootParent != nil {
		t.Fatalf("expected nil parent for root, got %+v", rootParent)
	}
}

func TestAncestorsAndSelfVariants(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	leaf, err := repo.FindOrCreateByPath(ctx, []string{"root", "child", "leaf"})
	if err != nil {
		t.Fatalf("create path: %v", err)
	}

	ancestors, err := repo.Ancestors(ctx, nil, leaf)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if !equalStrings(names(ancestors), []string{"child", "root"}) {
		t.Fatalf("ancestors of leaf: %v", names(ancestors))
	}

	selfAncestors, err := repo.SelfAndAncestors(ctx, nil, leaf)
	if err != nil {
		t.Fatalf("self and ancestors: %v", err)
	}
	if len(selfAncestors) != 3 || selfAncestors[0].ID != leaf.ID {
		t.Fatalf("self and ancestors: %v", names(selfAncestors))
	}

	root, err := repo.FindByPath(ctx, nil, []string{"root"})
	if err != nil || root == nil {
		t.Fatalf("find root: %v %v", root, err)
	}
	selfDescendants, err := repo.SelfAndDescendants(ctx, nil, root)
	if err != nil {
		t.Fatalf("self and descendants: %v", err)
	}
	if len(selfDescendants) != 3 || selfDescendants[0].ID != root.ID {
		t.Fatalf("self and descendants: %v", names(selfDescendants))
	}
}

func TestOrdering_NumericColumnThenName(t *testing.T) {
	db := pgConn(t)
	cfg := DefaultConfig("closure_nodes", "closure_node_hierarchies")
	cfg.Order = OrderByNumericColumn("position")
	repo := newTestRepo(t, db, cfg)
	ctx := context.Background()

	if _, err := repo.FindOrCreateByPath(ctx, []string{"menu", "zeta"}); err != nil {
		t.Fatalf("create path: %v", err)
	}
	if _, err := repo.FindOrCreateByPath(ctx, []string{"menu", "alpha"}); err != nil {
		t.Fatalf("create path: %v", err)
	}
	if _, err := repo.FindOrCreateByPath(ctx, []string{"menu", "mid"}); err != nil {
		t.Fatalf("create path: %v", err)
	}

	if err := db.Model(&testNode{}).Where("name = ?", "zeta").Update("position", 1).Error; err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := db.Model(&testNode{}).Where("name = ?", "alpha").Update("position", 2).Error; err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := db.Model(&testNode{}).Where("name = ?", "mid").Update("position", 2).Error; err != nil {
		t.Fatalf("set position: %v", err)
	}

	menu, err := repo.FindByPath(ctx, nil, []string{"menu"})
	if err != nil || menu == nil {
		t.Fatalf("find menu: %v %v", menu, err)
	}

	// Numeric column ascending, name ascending as tiebreak; stable across
	// repeated calls.
	for i := 0; i < 3; i++ {
		children, err := repo.Children(ctx, nil, menu)
		if err != nil {
			t.Fatalf("children: %v", err)
		}
		if !equalStrings(names(children), []string{"zeta", "alpha", "mid"}) {
			t.Fatalf("children order: %v", names(children))
		}
	}
}

func TestClosureInvariant_MatchesParentWalks(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	paths := [][]string{
		{"a", "b", "c"},
		{"a", "b", "d"},
		{"a", "e"},
		{"f"},
	}
	for _, p := range paths {
		if _, err := repo.FindOrCreateByPath(ctx, p); err != nil {
			t.Fatalf("create path %v: %v", p, err)
		}
	}

	var nodes []testNode
	if err := db.Find(&nodes).Error; err != nil {
		t.Fatalf("load nodes: %v", err)
	}
	parentOf := map[int32]*int32{}
	for _, n := range nodes {
		parentOf[n.ID] = n.ParentID
	}

	var edges []testEdge
	if err := db.Find(&edges).Error; err != nil {
		t.Fatalf("load edges: %v", err)
	}
	got := map[[2]int32]int{}
	for _, e := range edges {
		got[[2]int32{e.AncestorID, e.DescendantID}] = e.Generations
	}

	// Independently recompute every ancestor chain from parent pointers.
	want := map[[2]int32]int{}
	for _, n := range nodes {
		distance := 0
		ancestor := n.ID
		for {
			want[[2]int32{ancestor, n.ID}] = distance
			p := parentOf[ancestor]
			if p == nil {
				break
			}
			ancestor = *p
			distance++
		}
	}

	if len(got) != len(want) {
		t.Fatalf("edge count %d, want %d", len(got), len(want))
	}
	for key, generations := range want {
		if got[key] != generations {
			t.Fatalf("edge %v has %d generations, want %d", key, got[key], generations)
		}
	}
}

func TestFindOrCreateByPath_RollsBackOnInvariantFailure(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	// A node without closure rows violates the maintenance invariant;
	// extending a path below it must fail and leave nothing behind.
	if err := db.Create(&testNode{Name: "broken"}).Error; err != nil {
		t.Fatalf("seed broken node: %v", err)
	}

	_, err := repo.FindOrCreateByPath(ctx, []string{"broken", "child"})
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("expected invariant error, got %v", err)
	}

	var count int64
	db.Model(&testNode{}).Where("name = ?", "child").Count(&count)
	if count != 0 {
		t.Fatalf("partial path survived rollback")
	}
}

func TestFindOrCreateByPath_ConcurrentCallsCreateOneNode(t *testing.T) {
	db := pgConn(t)
	repo := defaultPGRepo(t, db)
	ctx := context.Background()

	const callers = 8
	ids := make([]int32, callers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			node, err := repo.FindOrCreateByPath(gctx, []string{"x"})
			if err != nil {
				return err
			}
			ids[i] = node.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent create: %v", err)
	}

	var count int64
	if err := db.Model(&testNode{}).Where("name = ?", "x").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one node named x, got %d", count)
	}
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("callers observed different nodes: %v", ids)
		}
	}
}
