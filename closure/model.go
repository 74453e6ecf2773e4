package closure

// Node is the capability set a record type must expose to participate in a
// closure tree. Implementations use pointer receivers for the mutators so
// the repository can populate freshly created rows.
//
// Conversion of the identifier type to a query parameter is delegated to
// database/sql: identifier types that are not natively supported by the
// driver implement driver.Valuer.
type Node[ID comparable] interface {
	NodeID() ID
	NodeParentID() *ID
	NodeName() string

	SetNodeParentID(id *ID)
	SetNodeName(name string)
}

// Edge is the capability set the paired hierarchy record type must expose.
// One edge row exists per (ancestor, descendant) pair, the self pair
// included at zero generations.
type Edge[ID comparable] interface {
	EdgeAncestorID() ID
	EdgeDescendantID() ID
	EdgeGenerations() int
}

// NodePtr constrains a type parameter to be a pointer to the node struct
// that implements Node.
type NodePtr[T any, ID comparable] interface {
	*T
	Node[ID]
}

// EdgePtr constrains a type parameter to be a pointer to the edge struct
// that implements Edge, plus the row builder used when inserting closure
// rows for a new node.
type EdgePtr[H any, ID comparable] interface {
	*H
	Edge[ID]
	SetEdge(ancestor ID, descendant ID, generations int)
}
