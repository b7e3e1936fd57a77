// Package keys defines the field keys of graph records.
//
// A graph record maps keys to tensors. The built-in keys (AtomicNum, Position, EdgeIndex, ...) form a
// closed vocabulary with well known semantics for batching; callers can add their own attributes
// with Node, Edge and Graph, which declare how the attribute is concatenated when graphs are batched.
package keys

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Level of a field: what each row of the field (axis 0, or axis 1 for the edge index) refers to.
type Level int

const (
	// LevelNode fields have one row per node (atom).
	LevelNode Level = iota

	// LevelEdge fields have one row per edge.
	LevelEdge

	// LevelGraph fields have one row per graph (e.g. targets, cell).
	LevelGraph

	// LevelEdgeIndex is the level of the [2, E] edge index. Its values are node indices, and they are shifted
	// when batching.
	LevelEdgeIndex

	// LevelBatch is the level of the derived batch-assignment vector.
	LevelBatch
)

var levelNames = []string{"node", "edge", "graph", "edge_index", "batch"}

// String implements fmt.Stringer.
func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Key identifies a field of a graph record. Keys are comparable and can be used as map keys.
type Key struct {
	name  string
	level Level
}

// Name of the key, as used in configuration and logs.
func (k Key) Name() string { return k.name }

// Level of the field.
func (k Key) Level() Level { return k.level }

// String implements fmt.Stringer.
func (k Key) String() string { return k.name }

// ConcatAxis returns the axis along which the field is concatenated when graphs are batched:
// 1 for the edge index (shape [2, E]), 0 for everything else.
func (k Key) ConcatAxis() int {
	if k.level == LevelEdgeIndex {
		return 1
	}
	return 0
}

// IsBuiltin returns whether the key is one of the built-in keys.
func (k Key) IsBuiltin() bool {
	b, found := builtins[k.name]
	return found && b == k
}

// Built-in keys.
var (
	// AtomicNum holds the atomic numbers of the nodes, shape [N]. Its dimension 0 is the node count of the graph.
	AtomicNum = Key{"atomic_num", LevelNode}

	// Position holds the cartesian coordinates of the nodes, shape [N, 3].
	Position = Key{"pos", LevelNode}

	// NodeAttr holds node features, shape [N, F].
	NodeAttr = Key{"node_attr", LevelNode}

	// EdgeIndex holds the source and target nodes of each edge, shape [2, E], with node-local indices in [0, N).
	EdgeIndex = Key{"edge_index", LevelEdgeIndex}

	// EdgeShift holds the periodic image shift of each edge, shape [E, 3].
	EdgeShift = Key{"edge_shift", LevelEdge}

	// EdgeAttr holds edge features, shape [E, F].
	EdgeAttr = Key{"edge_attr", LevelEdge}

	// Cell holds the lattice vectors of periodic systems, shape [1, 3, 3] (or [3, 3], promoted when batching).
	Cell = Key{"cell", LevelGraph}

	// Periodic flags whether the graph is a periodic system, shape [1].
	Periodic = Key{"periodic", LevelGraph}

	// Target holds the properties to predict for the graph, shape [1, T] or scalar.
	Target = Key{"target", LevelGraph}

	// Batch is the derived batch-assignment vector: for each node the 0-based ordinal of its graph in the batch.
	Batch = Key{"batch", LevelBatch}
)

var builtins = map[string]Key{}

func init() {
	for _, k := range []Key{AtomicNum, Position, NodeAttr, EdgeIndex, EdgeShift, EdgeAttr, Cell, Periodic, Target, Batch} {
		builtins[k.name] = k
	}
}

// FromName returns the built-in key with the given name.
func FromName(name string) (Key, bool) {
	k, found := builtins[name]
	return k, found
}

// Builtins returns the list of built-in keys, in no particular order.
func Builtins() []Key {
	list := make([]Key, 0, len(builtins))
	for _, k := range builtins {
		list = append(list, k)
	}
	return list
}

func custom(name string, level Level) Key {
	if name == "" {
		exceptions.Panicf("keys: custom attribute name cannot be empty")
	}
	if _, found := builtins[name]; found {
		exceptions.Panicf("keys: %q is a reserved key name, use keys.FromName(%q) instead", name, name)
	}
	return Key{name, level}
}

// Node returns a caller defined node-level key: one row per node, concatenated along axis 0.
// It panics if name is empty or the name of a built-in key.
func Node(name string) Key { return custom(name, LevelNode) }

// Edge returns a caller defined edge-level key: one row per edge, concatenated along axis 0.
// It panics if name is empty or the name of a built-in key.
func Edge(name string) Key { return custom(name, LevelEdge) }

// Graph returns a caller defined graph-level key: one row per graph, concatenated along axis 0.
// It panics if name is empty or the name of a built-in key.
func Graph(name string) Key { return custom(name, LevelGraph) }
