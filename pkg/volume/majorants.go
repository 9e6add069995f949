package volume

// FixMajorants raises every leaf maximum so it bounds the interpolated field anywhere
// inside the leaf, not just the raw voxels. order is the kernel reach in voxels.
//
// For every leaf, the 26 neighbouring leaf-sized boxes are intersected with the leaf box
// expanded by order, and the largest raw value found there is folded into the leaf's
// maximum. Empty neighbours of populated leaves are allocated first so the halo where the
// kernel still reaches non-zero voxels carries a bound too. Calling it again with the
// same or a smaller order is a no-op.
func FixMajorants(g *Grid, order int) {
	order = min(order, LeafDim)
	if order <= 0 || g.majorantOrder >= order {
		return
	}

	var populated []Coord
	for origin, l := range g.leaves {
		if l.hasValues() {
			populated = append(populated, origin)
		}
	}
	for _, origin := range populated {
		forEachNeighbour(func(d Coord) {
			g.addLeaf(origin.Add(Coord{d.X * LeafDim, d.Y * LeafDim, d.Z * LeafDim}))
		})
	}

	acc := g.Accessor()
	for _, l := range g.leaves {
		majorant := max(0, l.rawMax())

		leafBBox := l.BBox()
		aoe := leafBBox.Expand(order)

		forEachNeighbour(func(d Coord) {
			offset := Coord{d.X * LeafDim, d.Y * LeafDim, d.Z * LeafDim}
			if g.leaves[l.origin.Add(offset)] == nil {
				return
			}
			neighbour := leafBBox.Translate(offset).Intersect(aoe)
			if neighbour.IsEmpty() {
				return
			}
			neighbour.ForEach(func(c Coord) {
				if v := acc.Value(c); v > majorant {
					majorant = v
				}
			})
		})

		l.maximum = majorant
	}

	g.updateNodeMaxima()
	g.bbox = g.bbox.Expand(order)
	g.majorantOrder = order
}

func forEachNeighbour(fn func(Coord)) {
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				fn(Coord{i, j, k})
			}
		}
	}
}
