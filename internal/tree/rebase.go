package tree

import (
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/variant"
)

// Rebase carries the store ids of a saved tree back into the draft it was
// saved from. Nodes are matched by key; a draft node missing from saved
// (suppressed or never persisted) loses its id. Photo slots the saved
// variant uses take the saved, uploaded photos. Everything else, including
// values the variant suppresses, stays as edited.
func Rebase(draft, saved models.Report) models.Report {
	draft.ID = saved.ID
	policy := variant.For(saved.Variant)

	sites := make([]models.Site, len(draft.Sites))
	for i, s := range draft.Sites {
		n := indexOf(saved.Sites, s.Key, siteKey)
		if n < 0 {
			sites[i] = clearSite(s)
			continue
		}
		sites[i] = rebaseSite(s, saved.Sites[n], policy)
	}
	draft.Sites = sites
	return draft
}

func rebaseSite(s, saved models.Site, policy variant.Policy) models.Site {
	s.ID = saved.ID

	activities := make([]models.ActivityDetail, len(s.Activities))
	for i, a := range s.Activities {
		n := indexOf(saved.Activities, a.Key, activityKey)
		if n < 0 {
			activities[i] = clearActivity(a)
			continue
		}
		sa := saved.Activities[n]
		a.ID = sa.ID
		for _, slot := range models.Slots {
			if policy.SlotActive(slot) {
				a.Photos = a.Photos.With(slot, sa.Photos.Get(slot))
			}
		}
		a.Materials = rebaseIDs(a.Materials, sa.Materials, materialKey, materialID)
		activities[i] = a
	}
	s.Activities = activities

	s.Equipment = rebaseIDs(s.Equipment, saved.Equipment, equipmentKey, equipmentID)
	s.HeavyEquipment = rebaseIDs(s.HeavyEquipment, saved.HeavyEquipment, heavyKey, heavyID)
	return s
}

func clearSite(s models.Site) models.Site {
	s.ID = ""
	activities := make([]models.ActivityDetail, len(s.Activities))
	for i, a := range s.Activities {
		activities[i] = clearActivity(a)
	}
	s.Activities = activities
	s.Equipment = rebaseIDs(s.Equipment, nil, equipmentKey, equipmentID)
	s.HeavyEquipment = rebaseIDs(s.HeavyEquipment, nil, heavyKey, heavyID)
	return s
}

func clearActivity(a models.ActivityDetail) models.ActivityDetail {
	a.ID = ""
	a.Materials = rebaseIDs(a.Materials, nil, materialKey, materialID)
	return a
}

// rebaseIDs copies items, taking each id from the saved item with the same key
func rebaseIDs[T any](items, saved []T, keyOf func(T) string, id func(*T) *string) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		*id(&out[i]) = ""
		if n := indexOf(saved, keyOf(out[i]), keyOf); n >= 0 {
			*id(&out[i]) = *id(&saved[n])
		}
	}
	return out
}

func materialID(m *models.Material) *string { return &m.ID }
func equipmentID(e *models.Equipment) *string { return &e.ID }
func heavyID(h *models.HeavyEquipmentUsage) *string { return &h.ID }

// PendingHandles lists the blob handles of every pending photo in the tree
func PendingHandles(r models.Report) []string {
	var handles []string
	for _, s := range r.Sites {
		for _, a := range s.Activities {
			for _, slot := range models.Slots {
				for _, p := range a.Photos.Get(slot) {
					if att, ok := p.Attachment(); ok {
						handles = append(handles, att.Handle)
					}
				}
			}
		}
	}
	return handles
}
