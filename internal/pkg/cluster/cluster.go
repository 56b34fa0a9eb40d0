// Package cluster implements hierarchical greedy point clustering in
// Web-Mercator pixel space, answering "what markers are visible in this box at
// this zoom" in time proportional to the output.
//
// One R-tree is kept per zoom level. The deepest level (MaxZoom+1) holds the
// raw points; every shallower level merges neighbours of the level below that
// fall within Radius pixels at that zoom.
package cluster

import (
	"errors"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/geospatial"
)

// ErrClusterNotFound is returned for ids that name no node of the index.
var ErrClusterNotFound = errors.New("cluster not found")

// eps widens search rectangles so points lying exactly on an edge are
// returned by the tree; candidates are then filtered exactly.
const eps = 1e-12

// Options tunes clustering.
type Options struct {
	MinZoom   int     // shallowest zoom with clusters
	MaxZoom   int     // deepest zoom with clusters; deeper zooms show raw points
	MinPoints int     // minimum points to form a cluster
	Radius    float64 // cluster radius in pixels
	Extent    float64 // tile extent in pixels
	NodeMin   int     // R-tree node fan-out bounds
	NodeMax   int
}

// DefaultOptions mirrors the settings commonly used by web map clusterers.
func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   16,
		MinPoints: 2,
		Radius:    60,
		Extent:    512,
		NodeMin:   25,
		NodeMax:   50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxZoom < o.MinZoom {
		o.MinZoom, o.MaxZoom = d.MinZoom, d.MaxZoom
	}
	if o.MinPoints < 2 {
		o.MinPoints = d.MinPoints
	}
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.Extent <= 0 {
		o.Extent = d.Extent
	}
	if o.NodeMin <= 0 || o.NodeMax <= o.NodeMin {
		o.NodeMin, o.NodeMax = d.NodeMin, d.NodeMax
	}
	return o
}

// node is either a leaf (index < len(points)) or a cluster of other nodes.
type node struct {
	x, y     float64
	count    int
	zoom     int // last zoom this node was visited at while building
	children []int
	point    *domain.Point
}

// entry is what the per-zoom trees store.
type entry struct {
	idx  int
	x, y float64
}

func (e *entry) Bounds() rtreego.Rect {
	return rtreego.Point{e.x, e.y}.ToRect(eps)
}

// Index is safe for concurrent queries. Load never mutates its receiver, so a
// published index stays immutable.
type Index struct {
	opts    Options
	nodes   []node
	leaves  int
	levels  []*rtreego.Rtree // levels[z-MinZoom] for z in [MinZoom, MaxZoom+1]
	members [][]int          // node indices present at each level
}

// New returns an empty index.
func New(opts Options) *Index {
	return &Index{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (ix *Index) Options() Options { return ix.opts }

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.leaves }

// Load returns a new index holding the hierarchy for points, built with the
// receiver's options. Points with non-finite coordinates are ignored.
func (ix *Index) Load(points []domain.Point) *Index {
	out := &Index{opts: ix.opts}
	out.build(points)
	return out
}

func (ix *Index) build(points []domain.Point) {
	o := ix.opts
	unvisited := o.MaxZoom + 2

	ix.nodes = make([]node, 0, len(points)*2)
	for i := range points {
		p := &points[i]
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
			continue
		}
		lng := geospatial.NormalizeLongitude(p.Lng)
		ix.nodes = append(ix.nodes, node{
			x:     lngX(lng),
			y:     latY(p.Lat),
			count: 1,
			zoom:  unvisited,
			point: p,
		})
	}
	ix.leaves = len(ix.nodes)

	depth := o.MaxZoom - o.MinZoom + 2
	ix.levels = make([]*rtreego.Rtree, depth)
	ix.members = make([][]int, depth)

	current := make([]int, ix.leaves)
	for i := range current {
		current[i] = i
	}
	ix.setLevel(o.MaxZoom+1, current)

	for z := o.MaxZoom; z >= o.MinZoom; z-- {
		current = ix.clusterLevel(current, z)
		ix.setLevel(z, current)
	}
}

func (ix *Index) setLevel(z int, idxs []int) {
	objs := make([]rtreego.Spatial, len(idxs))
	for i, idx := range idxs {
		n := &ix.nodes[idx]
		objs[i] = &entry{idx: idx, x: n.x, y: n.y}
	}
	lvl := z - ix.opts.MinZoom
	ix.levels[lvl] = rtreego.NewTree(2, ix.opts.NodeMin, ix.opts.NodeMax, objs...)
	ix.members[lvl] = idxs
}

// clusterLevel merges the nodes of level z+1 into the nodes of level z.
func (ix *Index) clusterLevel(prev []int, z int) []int {
	o := ix.opts
	r := o.Radius / (o.Extent * math.Pow(2, float64(z)))
	tree := ix.levels[z+1-o.MinZoom]

	next := make([]int, 0, len(prev))
	for _, i := range prev {
		if ix.nodes[i].zoom <= z {
			continue
		}
		ix.nodes[i].zoom = z

		self := ix.nodes[i]
		neighbours := ix.within(tree, self.x, self.y, r)

		total := self.count
		for _, j := range neighbours {
			if j != i && ix.nodes[j].zoom > z {
				total += ix.nodes[j].count
			}
		}

		if total < o.MinPoints {
			next = append(next, i)
			for _, j := range neighbours {
				if j != i && ix.nodes[j].zoom > z {
					ix.nodes[j].zoom = z
					next = append(next, j)
				}
			}
			continue
		}

		wx, wy := self.x*float64(self.count), self.y*float64(self.count)
		children := []int{i}
		for _, j := range neighbours {
			if j == i || ix.nodes[j].zoom <= z {
				continue
			}
			n := &ix.nodes[j]
			n.zoom = z
			wx += n.x * float64(n.count)
			wy += n.y * float64(n.count)
			children = append(children, j)
		}

		ix.nodes = append(ix.nodes, node{
			x:        wx / float64(total),
			y:        wy / float64(total),
			count:    total,
			zoom:     o.MaxZoom + 2,
			children: children,
		})
		next = append(next, len(ix.nodes)-1)
	}
	return next
}

// within returns node indices of tree entries within r of (x, y), in index order.
func (ix *Index) within(tree *rtreego.Rtree, x, y, r float64) []int {
	rect, err := rtreego.NewRect(rtreego.Point{x - r - eps, y - r - eps}, []float64{2 * (r + eps), 2 * (r + eps)})
	if err != nil {
		return nil
	}
	var out []int
	for _, s := range tree.SearchIntersect(rect) {
		e := s.(*entry)
		dx, dy := e.x-x, e.y-y
		if dx*dx+dy*dy <= r*r {
			out = append(out, e.idx)
		}
	}
	sort.Ints(out)
	return out
}

// GetClusters returns the markers inside bbox at the given zoom, sorted by id.
// A box whose west edge is east of its east edge wraps through ±180°.
func (ix *Index) GetClusters(bbox domain.BBox, zoom int) []domain.ClusterResult {
	if ix.leaves == 0 || !bbox.Valid() {
		return []domain.ClusterResult{}
	}

	z := ix.clampZoom(zoom)
	south := math.Max(math.Min(bbox.South, bbox.North), -90)
	north := math.Min(math.Max(bbox.South, bbox.North), 90)

	var idxs []int
	if bbox.East-bbox.West >= 360 {
		idxs = ix.search(z, -180, south, 180, north)
	} else {
		west := geospatial.NormalizeLongitude(bbox.West)
		east := geospatial.NormalizeLongitude(bbox.East)
		if west > east {
			idxs = append(ix.search(z, west, south, 180, north), ix.search(z, -180, south, east, north)...)
		} else {
			idxs = ix.search(z, west, south, east, north)
		}
	}

	sort.Ints(idxs)
	out := make([]domain.ClusterResult, 0, len(idxs))
	for k, idx := range idxs {
		if k > 0 && idxs[k-1] == idx {
			continue
		}
		out = append(out, ix.result(idx))
	}
	return out
}

func (ix *Index) clampZoom(z int) int {
	if z < ix.opts.MinZoom {
		return ix.opts.MinZoom
	}
	if z > ix.opts.MaxZoom+1 {
		return ix.opts.MaxZoom + 1
	}
	return z
}

func (ix *Index) search(z int, west, south, east, north float64) []int {
	minX, maxX := lngX(west), lngX(east)
	minY, maxY := latY(north), latY(south)

	rect, err := rtreego.NewRect(
		rtreego.Point{minX - eps, minY - eps},
		[]float64{maxX - minX + 2*eps, maxY - minY + 2*eps},
	)
	if err != nil {
		return nil
	}

	var out []int
	for _, s := range ix.levels[z-ix.opts.MinZoom].SearchIntersect(rect) {
		e := s.(*entry)
		if e.x >= minX && e.x <= maxX && e.y >= minY && e.y <= maxY {
			out = append(out, e.idx)
		}
	}
	return out
}

func (ix *Index) result(idx int) domain.ClusterResult {
	n := &ix.nodes[idx]
	if idx < ix.leaves {
		return domain.ClusterResult{
			Kind:       domain.KindSingleton,
			ID:         idx,
			Lng:        n.point.Lng,
			Lat:        n.point.Lat,
			PointCount: 1,
			Point:      n.point,
		}
	}
	return domain.ClusterResult{
		Kind:       domain.KindCluster,
		ID:         idx,
		Lng:        xLng(n.x),
		Lat:        yLat(n.y),
		PointCount: n.count,
	}
}

// Leaves returns the ids of the points under a cluster, depth first.
// limit <= 0 means no limit. A singleton id yields its own point.
func (ix *Index) Leaves(id, limit, offset int) ([]string, error) {
	if id < 0 || id >= len(ix.nodes) {
		return nil, ErrClusterNotFound
	}
	if offset < 0 {
		offset = 0
	}

	out := []string{}
	skipped := 0
	var walk func(i int) bool
	walk = func(i int) bool {
		n := &ix.nodes[i]
		if i < ix.leaves {
			if skipped < offset {
				skipped++
				return true
			}
			out = append(out, n.point.ID)
			return limit <= 0 || len(out) < limit
		}
		for _, c := range n.children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(id)
	return out, nil
}

// Cluster returns a single result by id with its members attached.
func (ix *Index) Cluster(id int) (domain.ClusterResult, error) {
	if id < 0 || id >= len(ix.nodes) {
		return domain.ClusterResult{}, ErrClusterNotFound
	}
	return ix.WithMembers(ix.result(id)), nil
}

// WithMembers fills MemberIDs and RadiusMeters for a cluster result. The
// radius is the distance from the centroid to the farthest member.
func (ix *Index) WithMembers(r domain.ClusterResult) domain.ClusterResult {
	if r.Kind != domain.KindCluster || r.ID < ix.leaves || r.ID >= len(ix.nodes) {
		return r
	}

	var ids []string
	var radius float64
	var walk func(i int)
	walk = func(i int) {
		n := &ix.nodes[i]
		if i < ix.leaves {
			ids = append(ids, n.point.ID)
			if d := geospatial.Haversine(r.Lat, r.Lng, n.point.Lat, n.point.Lng); d > radius {
				radius = d
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(r.ID)

	r.MemberIDs = ids
	r.RadiusMeters = &radius
	return r
}

// Point returns the point behind a singleton id, or nil for clusters and
// unknown ids.
func (ix *Index) Point(id int) *domain.Point {
	if id < 0 || id >= ix.leaves {
		return nil
	}
	return ix.nodes[id].point
}
