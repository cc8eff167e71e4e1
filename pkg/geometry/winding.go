package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// untangle turns a raw offset polygon whose rings cross themselves or each
// other into simple polygons covering every point of nonzero winding. A
// polygon without crossings is returned unchanged.
func untangle(p orb.Polygon) []orb.Polygon {
	var cycles [][]orb.Point
	for _, r := range p {
		if c := openRing(r); len(c) >= 3 {
			cycles = append(cycles, c)
		}
	}
	if len(cycles) == 0 {
		return []orb.Polygon{p}
	}

	g := newArrangement(cycles)
	if !g.split() {
		return []orb.Polygon{p}
	}
	out := g.trace()
	if len(out) == 0 {
		return []orb.Polygon{p}
	}
	return out
}

type segment struct {
	a, b  orb.Point
	cycle int
	index int
}

type cut struct {
	t float64
	p orb.Point
}

type arc struct {
	from, to orb.Point
}

type arrangement struct {
	cycles [][]orb.Point
	segs   []segment
	cuts   [][]cut
}

func newArrangement(cycles [][]orb.Point) *arrangement {
	g := &arrangement{cycles: cycles}
	for c, pts := range cycles {
		for i := range pts {
			g.segs = append(g.segs, segment{a: pts[i], b: pts[(i+1)%len(pts)], cycle: c, index: i})
		}
	}
	g.cuts = make([][]cut, len(g.segs))
	return g
}

// split records every crossing and touch between non-adjacent segments and
// reports whether there was any.
func (g *arrangement) split() bool {
	order := make([]int, len(g.segs))
	bounds := make([]orb.Bound, len(g.segs))
	for i, s := range g.segs {
		order[i] = i
		bounds[i] = orb.MultiPoint{s.a, s.b}.Bound()
	}
	sort.Slice(order, func(x, y int) bool { return bounds[order[x]].Min[0] < bounds[order[y]].Min[0] })

	found := false
	for oi, i := range order {
		bi := bounds[i]
		for _, j := range order[oi+1:] {
			bj := bounds[j]
			if bj.Min[0] > bi.Max[0] {
				break
			}
			if bj.Min[1] > bi.Max[1] || bj.Max[1] < bi.Min[1] || g.adjacent(i, j) {
				continue
			}
			if g.cross(i, j) {
				found = true
			}
		}
	}
	return found
}

func (g *arrangement) adjacent(i, j int) bool {
	si, sj := g.segs[i], g.segs[j]
	if si.cycle != sj.cycle {
		return false
	}
	n := len(g.cycles[si.cycle])
	return (si.index+1)%n == sj.index || (sj.index+1)%n == si.index
}

func (g *arrangement) cross(i, j int) bool {
	const eps = 1e-9
	a, b := g.segs[i].a, g.segs[i].b
	c, d := g.segs[j].a, g.segs[j].b
	r := orb.Point{b[0] - a[0], b[1] - a[1]}
	s := orb.Point{d[0] - c[0], d[1] - c[1]}
	den := r[0]*s[1] - r[1]*s[0]
	if math.Abs(den) <= 1e-12*math.Hypot(r[0], r[1])*math.Hypot(s[0], s[1]) {
		return false
	}
	ac := orb.Point{c[0] - a[0], c[1] - a[1]}
	t := (ac[0]*s[1] - ac[1]*s[0]) / den
	u := (ac[0]*r[1] - ac[1]*r[0]) / den
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return false
	}

	tEnd := t <= eps || t >= 1-eps
	uEnd := u <= eps || u >= 1-eps
	var p orb.Point
	switch {
	case t <= eps:
		p = a
	case t >= 1-eps:
		p = b
	case u <= eps:
		p = c
	case u >= 1-eps:
		p = d
	default:
		p = orb.Point{a[0] + t*r[0], a[1] + t*r[1]}
	}
	if !tEnd {
		g.cuts[i] = append(g.cuts[i], cut{t, p})
	}
	if !uEnd {
		g.cuts[j] = append(g.cuts[j], cut{u, p})
	}
	return true
}

// pieces returns each cycle as the ordered arcs between cut points.
func (g *arrangement) pieces() [][]arc {
	out := make([][]arc, len(g.cycles))
	for i, s := range g.segs {
		cuts := g.cuts[i]
		sort.Slice(cuts, func(x, y int) bool { return cuts[x].t < cuts[y].t })
		prev := s.a
		for _, c := range cuts {
			if c.p != prev {
				out[s.cycle] = append(out[s.cycle], arc{prev, c.p})
				prev = c.p
			}
		}
		if s.b != prev {
			out[s.cycle] = append(out[s.cycle], arc{prev, s.b})
		}
	}
	return out
}

// trace keeps the arcs separating winding zero from nonzero winding and links
// them into rings, region on the left.
func (g *arrangement) trace() []orb.Polygon {
	pieces := g.pieces()
	starts := make(map[orb.Point]int)
	for _, arcs := range pieces {
		for _, a := range arcs {
			starts[a.from]++
		}
	}

	var kept []arc
	for _, arcs := range pieces {
		for _, chain := range chains(arcs, starts) {
			left, right := g.sides(chain)
			switch {
			case left != 0 && right == 0:
				kept = append(kept, chain...)
			case right != 0 && left == 0:
				for k := len(chain) - 1; k >= 0; k-- {
					kept = append(kept, arc{chain[k].to, chain[k].from})
				}
			}
		}
	}

	rings, ok := link(kept)
	if !ok {
		return nil
	}
	return assemble(rings)
}

// chains groups consecutive arcs of one cycle between nodes where other arcs
// also start; winding is constant along a chain.
func chains(arcs []arc, starts map[orb.Point]int) [][]arc {
	first := -1
	for k, a := range arcs {
		if starts[a.from] > 1 {
			first = k
			break
		}
	}
	if first < 0 {
		if len(arcs) == 0 {
			return nil
		}
		return [][]arc{arcs}
	}

	var out [][]arc
	var cur []arc
	for k := 0; k < len(arcs); k++ {
		a := arcs[(first+k)%len(arcs)]
		if k > 0 && starts[a.from] > 1 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, a)
	}
	return append(out, cur)
}

// sides returns the winding number just left and just right of the longest
// arc of the chain.
func (g *arrangement) sides(chain []arc) (int, int) {
	best, bestLen := chain[0], -1.0
	for _, a := range chain {
		if l := planar.Distance(a.from, a.to); l > bestLen {
			best, bestLen = a, l
		}
	}
	m := orb.Point{(best.from[0] + best.to[0]) / 2, (best.from[1] + best.to[1]) / 2}
	dir := direction(best.to[0]-best.from[0], best.to[1]-best.from[1])
	h := math.Max(bestLen*1e-4, 1e-10*(1+math.Abs(m[0])+math.Abs(m[1])))
	left := orb.Point{m[0] - h*dir[1], m[1] + h*dir[0]}
	right := orb.Point{m[0] + h*dir[1], m[1] - h*dir[0]}
	return windingNumber(left, g.cycles), windingNumber(right, g.cycles)
}

func windingNumber(p orb.Point, cycles [][]orb.Point) int {
	w := 0
	for _, c := range cycles {
		n := len(c)
		for i := 0; i < n; i++ {
			a, b := c[i], c[(i+1)%n]
			side := (b[0]-a[0])*(p[1]-a[1]) - (p[0]-a[0])*(b[1]-a[1])
			if a[1] <= p[1] {
				if b[1] > p[1] && side > 0 {
					w++
				}
			} else if b[1] <= p[1] && side < 0 {
				w--
			}
		}
	}
	return w
}

// link walks the kept arcs into closed rings. At a node with several ways out
// it takes the sharpest left turn so touching lobes stay separate rings.
func link(kept []arc) ([]orb.Ring, bool) {
	out := make(map[orb.Point][]int, len(kept))
	for i, a := range kept {
		out[a.from] = append(out[a.from], i)
	}

	used := make([]bool, len(kept))
	var rings []orb.Ring
	for s := range kept {
		if used[s] {
			continue
		}
		ring := orb.Ring{kept[s].from}
		cur := s
		for steps := 0; ; steps++ {
			used[cur] = true
			end := kept[cur].to
			ring = append(ring, end)
			if end == ring[0] {
				break
			}
			next := turnLeft(kept, out[end], used, cur)
			if next < 0 || steps > len(kept) {
				return nil, false
			}
			cur = next
		}
		rings = append(rings, ring)
	}
	return rings, true
}

func turnLeft(kept []arc, candidates []int, used []bool, in int) int {
	din := direction(kept[in].to[0]-kept[in].from[0], kept[in].to[1]-kept[in].from[1])
	best, bestTurn := -1, math.Inf(-1)
	for _, c := range candidates {
		if used[c] {
			continue
		}
		dout := direction(kept[c].to[0]-kept[c].from[0], kept[c].to[1]-kept[c].from[1])
		turn := math.Atan2(din[0]*dout[1]-din[1]*dout[0], din[0]*dout[0]+din[1]*dout[1])
		if turn > bestTurn {
			best, bestTurn = c, turn
		}
	}
	return best
}

// assemble sorts rings into shells (counter-clockwise) and holes, giving each
// hole to the smallest shell around it.
func assemble(rings []orb.Ring) []orb.Polygon {
	type shell struct {
		ring  orb.Ring
		area  float64
		holes []orb.Ring
	}
	var shells []*shell
	var holes []orb.Ring
	for _, r := range rings {
		if len(r) < 4 {
			continue
		}
		switch a := signedArea([]orb.Point(r)); {
		case a > 0:
			shells = append(shells, &shell{ring: r, area: a})
		case a < 0:
			holes = append(holes, r)
		}
	}
	if len(shells) == 0 {
		return nil
	}
	sort.SliceStable(shells, func(i, j int) bool { return shells[i].area > shells[j].area })

	for _, h := range holes {
		dir := direction(h[1][0]-h[0][0], h[1][1]-h[0][1])
		l := planar.Distance(h[0], h[1])
		m := orb.Point{(h[0][0] + h[1][0]) / 2, (h[0][1] + h[1][1]) / 2}
		inside := orb.Point{m[0] - l*1e-4*dir[1], m[1] + l*1e-4*dir[0]}

		var owner *shell
		for _, s := range shells {
			if planar.RingContains(s.ring, inside) && (owner == nil || s.area < owner.area) {
				owner = s
			}
		}
		if owner != nil {
			owner.holes = append(owner.holes, h)
		}
	}

	out := make([]orb.Polygon, 0, len(shells))
	for _, s := range shells {
		out = append(out, append(orb.Polygon{s.ring}, s.holes...))
	}
	return out
}
