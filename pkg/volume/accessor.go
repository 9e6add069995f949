package volume

// NodeInfo describes the hierarchy node containing a coordinate
type NodeInfo struct {
	Dim     int     // Edge length in voxels of the node to step over
	Maximum float64 // Majorant of that node, 0 for empty space
}

// Accessor is a read-only view on a Grid that caches the last visited leaf
type Accessor struct {
	grid       *Grid
	leafOrigin Coord
	leaf       *LeafNode
	cached     bool
}

func (a *Accessor) leafAt(c Coord) *LeafNode {
	origin := c.Align(LeafDim)
	if a.cached && origin == a.leafOrigin {
		return a.leaf
	}
	a.leaf = a.grid.leaves[origin]
	a.leafOrigin = origin
	a.cached = true
	return a.leaf
}

// Value returns the raw voxel value at c (0 outside allocated leaves)
func (a *Accessor) Value(c Coord) float64 {
	l := a.leafAt(c)
	if l == nil {
		return 0
	}
	return float64(l.values[leafOffset(c)])
}

// NodeInfo returns the node a traversal positioned at c should step over: the leaf when
// its upper node is populated, otherwise the whole empty upper node.
func (a *Accessor) NodeInfo(c Coord) NodeInfo {
	if _, ok := a.grid.uppers[c.Align(UpperDim)]; !ok {
		return NodeInfo{Dim: UpperDim}
	}
	l := a.leafAt(c)
	if l == nil {
		return NodeInfo{Dim: LeafDim}
	}
	return NodeInfo{Dim: LeafDim, Maximum: l.maximum}
}
