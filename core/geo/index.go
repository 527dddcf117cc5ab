package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mindcare/guardian/core/model"
)

// ErrStaleUpdate is returned when an upsert carries a capture time older
// than the position already stored for the subject.
var ErrStaleUpdate = errors.New("geo: stale position update")

// Match is one subject found inside a radius query.
type Match struct {
	SubjectID      string
	DistanceMeters float64
}

// Filter restricts which subjects a radius query may return. A nil predicate
// matches every subject.
type Filter func(model.Subject) bool

// SubjectView resolves a subject id to its current record. The index stores
// positions only; role and availability live with the caller.
type SubjectView interface {
	Subject(id string) (model.Subject, bool)
}

// Index keeps the last known position per subject and answers radius
// queries. Entries are bucketed into a fixed lat/lon grid so a query only
// scans cells overlapping the search circle. Reads never mutate.
type Index struct {
	mu       sync.RWMutex
	cellDeg  float64
	bySubj   map[string]model.Position
	cells    map[cellKey]map[string]struct{}
	subjects SubjectView
}

type cellKey struct {
	lat int
	lon int
}

// NewIndex creates an Index resolving subjects through view. cellDeg is the
// grid cell size in degrees; zero or negative selects a 0.5 degree default.
func NewIndex(view SubjectView, cellDeg float64) *Index {
	if cellDeg <= 0 {
		cellDeg = 0.5
	}
	return &Index{
		cellDeg:  cellDeg,
		bySubj:   make(map[string]model.Position),
		cells:    make(map[cellKey]map[string]struct{}),
		subjects: view,
	}
}

func (ix *Index) cellOf(lat, lon float64) cellKey {
	if lon >= 180 { // +180 and -180 are the same meridian
		lon -= 360
	}
	return cellKey{
		lat: int(math.Floor(lat / ix.cellDeg)),
		lon: int(math.Floor(lon / ix.cellDeg)),
	}
}

// UpsertPosition replaces the subject's last known position. An update whose
// CapturedAt is older than the stored one is rejected with ErrStaleUpdate;
// replaying the identical timestamp is accepted and idempotent.
func (ix *Index) UpsertPosition(subjectID string, pos model.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if prev, ok := ix.bySubj[subjectID]; ok {
		if pos.CapturedAt.Before(prev.CapturedAt) {
			return fmt.Errorf("%w: subject %s has %s, got %s",
				ErrStaleUpdate, subjectID,
				prev.CapturedAt.Format("15:04:05.000"), pos.CapturedAt.Format("15:04:05.000"))
		}
		old := ix.cellOf(prev.Latitude, prev.Longitude)
		if set := ix.cells[old]; set != nil {
			delete(set, subjectID)
			if len(set) == 0 {
				delete(ix.cells, old)
			}
		}
	}
	ix.bySubj[subjectID] = pos
	key := ix.cellOf(pos.Latitude, pos.Longitude)
	set := ix.cells[key]
	if set == nil {
		set = make(map[string]struct{})
		ix.cells[key] = set
	}
	set[subjectID] = struct{}{}
	return nil
}

// Remove drops the subject from the index. Unknown subjects are a no-op.
func (ix *Index) Remove(subjectID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	prev, ok := ix.bySubj[subjectID]
	if !ok {
		return
	}
	delete(ix.bySubj, subjectID)
	key := ix.cellOf(prev.Latitude, prev.Longitude)
	if set := ix.cells[key]; set != nil {
		delete(set, subjectID)
		if len(set) == 0 {
			delete(ix.cells, key)
		}
	}
}

// Position returns the stored position for the subject.
func (ix *Index) Position(subjectID string) (model.Position, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.bySubj[subjectID]
	return p, ok
}

// QueryWithinRadius returns every subject whose great-circle distance to
// center is at most radiusMeters and that passes the filter, sorted by
// ascending distance with ties broken by subject id. The filter and the
// subject view run after the index lock is released; they may block on I/O
// without stalling writers.
func (ix *Index) QueryWithinRadius(center model.Position, radiusMeters float64, filter Filter) []Match {
	if radiusMeters < 0 {
		return nil
	}
	type candidate struct {
		id  string
		pos model.Position
	}
	ix.mu.RLock()
	var cands []candidate
	ix.forEachCandidate(center, radiusMeters, func(id string, pos model.Position) {
		cands = append(cands, candidate{id: id, pos: pos})
	})
	ix.mu.RUnlock()

	var matches []Match
	for _, c := range cands {
		d := Haversine(center.Latitude, center.Longitude, c.pos.Latitude, c.pos.Longitude)
		if d > radiusMeters {
			continue
		}
		if filter != nil {
			if ix.subjects == nil {
				continue
			}
			subj, ok := ix.subjects.Subject(c.id)
			if !ok || !filter(subj) {
				continue
			}
		}
		matches = append(matches, Match{SubjectID: c.id, DistanceMeters: d})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].SubjectID < matches[j].SubjectID
	})
	return matches
}

// forEachCandidate visits every subject stored in a grid cell that may
// overlap the search circle. Longitude cells wrap across the antimeridian;
// near the poles the longitude span degenerates and all cells in the lat
// band are visited instead.
// metersPerDegree is one degree of arc on the sphere Haversine measures
// against. The band math must use the same radius or subjects just inside
// the circle can land in a cell outside the scanned range.
const metersPerDegree = earthRadiusMeters * math.Pi / 180

func (ix *Index) forEachCandidate(center model.Position, radiusMeters float64, visit func(string, model.Position)) {
	latDelta := radiusMeters / metersPerDegree
	minLat := math.Max(center.Latitude-latDelta, -90)
	maxLat := math.Min(center.Latitude+latDelta, 90)

	minLatCell := int(math.Floor(minLat / ix.cellDeg))
	maxLatCell := int(math.Floor(maxLat / ix.cellDeg))

	lonCellsTotal := int(math.Ceil(360 / ix.cellDeg))

	for latCell := minLatCell; latCell <= maxLatCell; latCell++ {
		// widest latitude of this band bounds the needed lon span
		bandLat := math.Max(math.Abs(float64(latCell)*ix.cellDeg), math.Abs(float64(latCell+1)*ix.cellDeg))
		cosLat := math.Cos(bandLat * math.Pi / 180)
		scanAllLon := cosLat*metersPerDegree*ix.cellDeg <= 1 // band within ~1m of a pole
		var lonCells int
		if !scanAllLon {
			lonDelta := radiusMeters / (metersPerDegree * cosLat)
			lonCells = int(math.Ceil(lonDelta/ix.cellDeg)) + 1
			if lonCells*2+1 >= lonCellsTotal {
				scanAllLon = true
			}
		}
		centerLonCell := ix.cellOf(0, center.Longitude).lon
		if scanAllLon {
			lonCells = lonCellsTotal/2 + 1
		}
		ix.visitLonRange(latCell, centerLonCell, lonCells, lonCellsTotal, visit)
	}
}

func (ix *Index) visitLonRange(latCell, centerLonCell, span, total int, visit func(string, model.Position)) {
	seen := make(map[int]struct{}, span*2+1)
	for off := -span; off <= span; off++ {
		lonCell := centerLonCell + off
		// wrap so cells on either side of the antimeridian coincide
		halfTotal := total / 2
		for lonCell < -halfTotal {
			lonCell += total
		}
		for lonCell >= halfTotal {
			lonCell -= total
		}
		if _, dup := seen[lonCell]; dup {
			continue
		}
		seen[lonCell] = struct{}{}
		for id := range ix.cells[cellKey{lat: latCell, lon: lonCell}] {
			visit(id, ix.bySubj[id])
		}
	}
}
