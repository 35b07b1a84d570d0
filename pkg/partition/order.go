package partition

import "slices"

// compareSiblings is the total order over generated children. Default
// partitions sort after everything else. Otherwise the comparison pairs
// whichever bound sides both children carry: lower against lower, else
// upper against upper, else the mixed cases. When only a lower bound
// meets an equal upper bound, the upper side sorts first so that a
// partition ending where another implicitly starts lands directly
// before it.
func compareSiblings(a, b *Child, col KeyColumn) int {
	if a.Bound.IsDefault != b.Bound.IsDefault {
		if b.Bound.IsDefault {
			return -1
		}
		return 1
	}

	switch {
	case len(a.Bound.Lower) > 0 && len(b.Bound.Lower) > 0:
		return compareBounds(a.Bound.Lower, b.Bound.Lower, col)
	case len(a.Bound.Upper) > 0 && len(b.Bound.Upper) > 0:
		return compareBounds(a.Bound.Upper, b.Bound.Upper, col)
	case len(a.Bound.Lower) > 0 && len(b.Bound.Upper) > 0:
		cmp := compareBounds(a.Bound.Lower, b.Bound.Upper, col)
		if cmp == 0 {
			cmp = 1
		}
		return cmp
	case len(a.Bound.Upper) > 0 && len(b.Bound.Lower) > 0:
		return compareBounds(a.Bound.Upper, b.Bound.Lower, col)
	}
	return 0
}

// orderSiblings returns the children sorted by compareSiblings without
// touching the input slice. The sort is stable so equal keys keep
// their source order.
func orderSiblings(parts []Child, col KeyColumn) []Child {
	sorted := slices.Clone(parts)
	slices.SortStableFunc(sorted, func(a, b Child) int {
		return compareSiblings(&a, &b, col)
	})
	return sorted
}

// resolveImplicitRangeBounds sorts the children and fills each missing
// lower bound from the preceding sibling's upper bound and each missing
// upper bound from the following sibling's lower bound, with MINVALUE
// and MAXVALUE at the open ends. Neighbor bounds are read in sorted
// order, so a bound filled earlier in the pass can propagate into the
// next element. Any bound still unresolved afterwards (possible when
// two adjacent elements carried only a START and only an END) falls
// back to the sentinels, keeping every range child fully bounded.
// Default children keep empty bounds.
func resolveImplicitRangeBounds(parts []Child, col KeyColumn) []Child {
	sorted := orderSiblings(parts, col)

	var nd []int
	for i := range sorted {
		if !sorted[i].Bound.IsDefault {
			nd = append(nd, i)
		}
	}

	for k, idx := range nd {
		b := &sorted[idx].Bound
		if len(b.Lower) == 0 {
			if k > 0 {
				b.Lower = slices.Clone(sorted[nd[k-1]].Bound.Upper)
			} else {
				b.Lower = []Bound{MinValueBound()}
			}
		}
		if len(b.Upper) == 0 {
			if k+1 < len(nd) {
				b.Upper = slices.Clone(sorted[nd[k+1]].Bound.Lower)
			} else {
				b.Upper = []Bound{MaxValueBound()}
			}
		}
	}

	for _, idx := range nd {
		b := &sorted[idx].Bound
		if len(b.Lower) == 0 {
			b.Lower = []Bound{MinValueBound()}
		}
		if len(b.Upper) == 0 {
			b.Upper = []Bound{MaxValueBound()}
		}
	}
	return sorted
}
