package geo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mindcare/guardian/core/model"
)

type staticView map[string]model.Subject

func (v staticView) Subject(id string) (model.Subject, bool) {
	s, ok := v[id]
	return s, ok
}

func pos(lat, lon float64, at time.Time) model.Position {
	return model.Position{Latitude: lat, Longitude: lon, AccuracyMeters: 10, CapturedAt: at}
}

func TestUpsertRejectsStaleUpdate(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	if err := ix.UpsertPosition("c1", pos(10, 20, now)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	err := ix.UpsertPosition("c1", pos(11, 21, now.Add(-time.Minute)))
	if !errors.Is(err, ErrStaleUpdate) {
		t.Fatalf("expected ErrStaleUpdate, got %v", err)
	}
	got, _ := ix.Position("c1")
	if got.Latitude != 10 {
		t.Fatalf("stale update must not replace the stored position")
	}
}

func TestUpsertSameTimestampIsIdempotent(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	if err := ix.UpsertPosition("c1", pos(10, 20, now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.UpsertPosition("c1", pos(10.5, 20, now)); err != nil {
		t.Fatalf("replay of identical timestamp must be accepted: %v", err)
	}
	got, _ := ix.Position("c1")
	if got.Latitude != 10.5 {
		t.Fatalf("expected replacement, got %+v", got)
	}
}

func TestUpsertValidatesCoordinates(t *testing.T) {
	ix := NewIndex(nil, 0)
	if err := ix.UpsertPosition("c1", pos(91, 0, time.Now())); err == nil {
		t.Fatal("expected error for latitude out of range")
	}
	if err := ix.UpsertPosition("c1", pos(0, 181, time.Now())); err == nil {
		t.Fatal("expected error for longitude out of range")
	}
}

func TestQueryOrderingIsDeterministic(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	center := pos(37.7749, -122.4194, now)
	// b and a sit on the same spot so the tie falls back to the id
	for _, id := range []string{"b", "a", "far"} {
		p := pos(37.7793, -122.4194, now)
		if id == "far" {
			p = pos(37.8649, -122.4194, now)
		}
		if err := ix.UpsertPosition(id, p); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	got := ix.QueryWithinRadius(center, 2000, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].SubjectID != "a" || got[1].SubjectID != "b" {
		t.Fatalf("expected tie-break by id, got %v", got)
	}
}

func TestQueryAppliesFilter(t *testing.T) {
	view := staticView{
		"cg":  {ID: "cg", Role: model.RoleCaregiver, Availability: model.AvailabilityAvailable},
		"pat": {ID: "pat", Role: model.RolePatient},
	}
	ix := NewIndex(view, 0)
	now := time.Now()
	_ = ix.UpsertPosition("cg", pos(48.85, 2.35, now))
	_ = ix.UpsertPosition("pat", pos(48.85, 2.35, now))

	got := ix.QueryWithinRadius(pos(48.851, 2.351, now), 1000, func(s model.Subject) bool {
		return s.Role == model.RoleCaregiver
	})
	if len(got) != 1 || got[0].SubjectID != "cg" {
		t.Fatalf("expected only the caregiver, got %v", got)
	}
}

// A subject just inside the radius but in the grid cell past the scanned
// latitude band must still be found. The band math and Haversine have to
// agree on the length of one degree or this sliver goes missing.
func TestQueryIncludesSubjectAtLatitudeBandEdge(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	// 55598.7 m from the equator, one cell above the 0.5 degree boundary
	if err := ix.UpsertPosition("edge", pos(0.50001, 0, now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	want := Haversine(0, 0, 0.50001, 0)
	got := ix.QueryWithinRadius(pos(0, 0, now), want+50, nil)
	if len(got) != 1 || got[0].SubjectID != "edge" {
		t.Fatalf("subject at %.1f m excluded from %.1f m radius query: %v", want, want+50, got)
	}
}

// Writes must not block behind an in-flight query's filter: the filter may
// do subject lookups with external latency, so it runs after the index
// lock is released.
func TestQueryFilterRunsOutsideIndexLock(t *testing.T) {
	view := staticView{
		"cg": {ID: "cg", Role: model.RoleCaregiver, Availability: model.AvailabilityAvailable},
	}
	ix := NewIndex(view, 0)
	now := time.Now()
	_ = ix.UpsertPosition("cg", pos(48.85, 2.35, now))

	// an upsert from inside the filter deadlocks if the query still holds
	// the read lock
	got := ix.QueryWithinRadius(pos(48.85, 2.35, now), 1000, func(s model.Subject) bool {
		if err := ix.UpsertPosition("other", pos(10, 10, now)); err != nil {
			t.Errorf("upsert during filter: %v", err)
		}
		return true
	})
	if len(got) != 1 || got[0].SubjectID != "cg" {
		t.Fatalf("expected the caregiver, got %v", got)
	}
	if _, ok := ix.Position("other"); !ok {
		t.Fatal("write issued during the filter was lost")
	}
}

func TestQueryCrossesAntimeridian(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	_ = ix.UpsertPosition("west", pos(0, 179.95, now))
	_ = ix.UpsertPosition("east", pos(0, -179.95, now))

	got := ix.QueryWithinRadius(pos(0, 179.99, now), 15000, nil)
	if len(got) != 2 {
		t.Fatalf("antimeridian query must find both sides, got %v", got)
	}
}

func TestQueryNearPole(t *testing.T) {
	ix := NewIndex(nil, 0)
	now := time.Now()
	// same parallel, opposite longitudes: ~2.2km apart at 89.99N
	_ = ix.UpsertPosition("n1", pos(89.99, 0, now))
	_ = ix.UpsertPosition("n2", pos(89.99, 180, now))

	got := ix.QueryWithinRadius(pos(89.995, 90, now), 5000, nil)
	if len(got) != 2 {
		t.Fatalf("polar query must not exclude wrapped longitudes, got %v", got)
	}
}

// The grid index must return exactly the set a brute-force haversine scan
// returns, for randomized fixtures.
func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	ix := NewIndex(nil, 0)
	type entry struct {
		id  string
		pos model.Position
	}
	var all []entry
	for i := 0; i < 500; i++ {
		p := pos(rng.Float64()*180-90, rng.Float64()*360-180, now)
		id := fmt.Sprintf("subj-%03d", i)
		all = append(all, entry{id: id, pos: p})
		if err := ix.UpsertPosition(id, p); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	for q := 0; q < 50; q++ {
		center := pos(rng.Float64()*180-90, rng.Float64()*360-180, now)
		radius := rng.Float64() * 2e6
		want := make(map[string]bool)
		for _, e := range all {
			if Haversine(center.Latitude, center.Longitude, e.pos.Latitude, e.pos.Longitude) <= radius {
				want[e.id] = true
			}
		}
		got := ix.QueryWithinRadius(center, radius, nil)
		if len(got) != len(want) {
			t.Fatalf("query %d: expected %d matches, got %d", q, len(want), len(got))
		}
		for i, m := range got {
			if !want[m.SubjectID] {
				t.Fatalf("query %d: unexpected match %s", q, m.SubjectID)
			}
			if i > 0 && got[i-1].DistanceMeters > m.DistanceMeters {
				t.Fatalf("query %d: results not sorted by distance", q)
			}
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Paris to London, roughly 343.5 km
	d := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	if math.Abs(d-343500) > 2000 {
		t.Fatalf("unexpected Paris-London distance: %.0f m", d)
	}
}
