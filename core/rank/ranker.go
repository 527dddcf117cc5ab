// Package rank orders caregiver candidates for an alert.
package rank

import (
	"sort"

	"github.com/mindcare/guardian/core/geo"
	"github.com/mindcare/guardian/core/model"
)

// Ranker turns the raw proximity matches of a geo query into an ordered
// candidate list. Rank is a pure function of its inputs: identical snapshots
// always produce the identical order.
type Ranker struct{}

// Rank filters and orders the matches for the given patient. Offline
// caregivers are dropped. Assigned caregivers always precede nearby ones;
// within each group available precede busy, then ascending distance, then
// subject id.
func (Ranker) Rank(patientID string, matches []geo.Match, caregivers map[string]model.Subject) []model.AlertCandidate {
	candidates := make([]model.AlertCandidate, 0, len(matches))
	for _, m := range matches {
		cg, ok := caregivers[m.SubjectID]
		if !ok || cg.Role != model.RoleCaregiver {
			continue
		}
		if cg.ID == patientID {
			continue
		}
		if cg.Availability == model.AvailabilityOffline {
			continue
		}
		rel := model.RelationshipNearby
		if cg.AssignedToPatient(patientID) {
			rel = model.RelationshipAssigned
		}
		candidates = append(candidates, model.AlertCandidate{
			SubjectID:      m.SubjectID,
			DistanceMeters: m.DistanceMeters,
			Relationship:   rel,
			Busy:           cg.Availability == model.AvailabilityBusy,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Relationship != b.Relationship {
			return a.Relationship == model.RelationshipAssigned
		}
		if a.Busy != b.Busy {
			return !a.Busy
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		return a.SubjectID < b.SubjectID
	})
	for i := range candidates {
		candidates[i].Rank = i
	}
	return candidates
}
