// Package tree implements the editable report tree: Report -> Sites ->
// Activity details -> Materials, plus per-site Equipment and Heavy-equipment
// lists.
//
// Every mutator takes a report value and returns a new one; slices along the
// edited path are copied, so the caller's value is never modified and a
// refused mutation returns the original report together with a
// *ValidationError.
package tree

import (
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/variant"
)

// Minimum sizes of the child collections
const (
	MinSites      = 1
	MinActivities = 1
	MinMaterials  = 1
	MinEquipment  = 1
)

// NewReport starts a report with one empty site
func NewReport(v models.Variant, owner string) models.Report {
	return models.Report{
		Key:     models.NewKey(),
		Variant: v,
		Owner:   owner,
		Sites:   []models.Site{NewSite(v)},
	}
}

// NewSite returns a site holding the minimum set of children for a variant
func NewSite(v models.Variant) models.Site {
	s := models.Site{
		Key:          models.NewKey(),
		Coordinators: []string{},
		Personnel:    map[string]int{},
		Activities:   []models.ActivityDetail{models.NewActivityDetail()},
		Equipment:    []models.Equipment{models.NewEquipment()},
	}
	if variant.For(v).MinHeavyEquipment() > 0 {
		s.HeavyEquipment = []models.HeavyEquipmentUsage{models.NewHeavyEquipmentUsage()}
	}
	return s
}

// AddChild appends a fresh element to the collection at path and returns
// the new tree and the key of the new element.
func AddChild(r models.Report, path string) (models.Report, string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return r, "", err
	}

	if len(p) == 1 && p[0] == CollSites {
		site := NewSite(r.Variant)
		r.Sites = appendCopy(r.Sites, site)
		return r, site.Key, nil
	}
	if len(p) < 3 || p[0] != CollSites {
		return r, "", unknownPath(path)
	}

	var key string
	next, err := updateSite(r, p[1], path, func(s models.Site) (models.Site, error) {
		rest := p[2:]
		switch {
		case len(rest) == 1 && rest[0] == CollActivities:
			a := models.NewActivityDetail()
			key = a.Key
			s.Activities = appendCopy(s.Activities, a)
		case len(rest) == 1 && rest[0] == CollEquipment:
			e := models.NewEquipment()
			key = e.Key
			s.Equipment = appendCopy(s.Equipment, e)
		case len(rest) == 1 && rest[0] == CollHeavyEquipment:
			if variant.For(r.Variant).HeavyEquipment == variant.Suppressed {
				return s, invalidValue(path, "heavy equipment is not recorded for this report kind")
			}
			h := models.NewHeavyEquipmentUsage()
			key = h.Key
			s.HeavyEquipment = appendCopy(s.HeavyEquipment, h)
		case len(rest) == 3 && rest[0] == CollActivities && rest[2] == CollMaterials:
			return updateActivity(s, rest[1], path, func(a models.ActivityDetail) (models.ActivityDetail, error) {
				m := models.NewMaterial()
				key = m.Key
				a.Materials = appendCopy(a.Materials, m)
				return a, nil
			})
		default:
			return s, unknownPath(path)
		}
		return s, nil
	})
	if err != nil {
		return r, "", err
	}
	return next, key, nil
}

// RemoveChild removes the element at path. Removing the last element of a
// collection with a minimum size is refused with ErrMinCardinality.
func RemoveChild(r models.Report, path string) (models.Report, error) {
	p, err := ParsePath(path)
	if err != nil {
		return r, err
	}
	if len(p) < 2 || p[0] != CollSites || len(p)%2 != 0 {
		return r, unknownPath(path)
	}

	if len(p) == 2 {
		i := indexOf(r.Sites, p[1], siteKey)
		if i < 0 {
			return r, unknownPath(path)
		}
		if len(r.Sites) <= MinSites {
			return r, minCardinality(path, CollSites, MinSites)
		}
		r.Sites = removeAt(r.Sites, i)
		return r, nil
	}

	return updateSite(r, p[1], path, func(s models.Site) (models.Site, error) {
		rest := p[2:]
		switch {
		case len(rest) == 2 && rest[0] == CollActivities:
			err := removeKeyed(&s.Activities, rest[1], activityKey, MinActivities, path, CollActivities)
			return s, err
		case len(rest) == 2 && rest[0] == CollEquipment:
			err := removeKeyed(&s.Equipment, rest[1], equipmentKey, MinEquipment, path, CollEquipment)
			return s, err
		case len(rest) == 2 && rest[0] == CollHeavyEquipment:
			minHeavy := variant.For(r.Variant).MinHeavyEquipment()
			err := removeKeyed(&s.HeavyEquipment, rest[1], heavyKey, minHeavy, path, CollHeavyEquipment)
			return s, err
		case len(rest) == 4 && rest[0] == CollActivities && rest[2] == CollMaterials:
			return updateActivity(s, rest[1], path, func(a models.ActivityDetail) (models.ActivityDetail, error) {
				err := removeKeyed(&a.Materials, rest[3], materialKey, MinMaterials, path, CollMaterials)
				return a, err
			})
		default:
			return s, unknownPath(path)
		}
	})
}

// removeKeyed removes the keyed element by replacing the slice header; the
// backing array shared with older tree values is not modified.
func removeKeyed[T any](items *[]T, key string, keyOf func(T) string, minSize int, path, collection string) error {
	i := indexOf(*items, key, keyOf)
	if i < 0 {
		return unknownPath(path)
	}
	if len(*items) <= minSize {
		return minCardinality(path, collection, minSize)
	}
	*items = removeAt(*items, i)
	return nil
}

// AttachPhoto appends a photo to the slot at path
func AttachPhoto(r models.Report, path string, photo models.Photo) (models.Report, error) {
	return updateSlot(r, path, func(photos []models.Photo) ([]models.Photo, error) {
		return appendCopy(photos, photo), nil
	})
}

// RemovePhoto removes the photo at index from the slot at path
func RemovePhoto(r models.Report, path string, index int) (models.Report, error) {
	return updateSlot(r, path, func(photos []models.Photo) ([]models.Photo, error) {
		if index < 0 || index >= len(photos) {
			return photos, invalidValue(path, "photo index out of range")
		}
		return removeAt(photos, index), nil
	})
}

func updateSlot(r models.Report, path string, fn func([]models.Photo) ([]models.Photo, error)) (models.Report, error) {
	p, err := ParsePath(path)
	if err != nil {
		return r, err
	}
	if len(p) != 6 || p[0] != CollSites || p[2] != CollActivities || p[4] != CollPhotos {
		return r, unknownPath(path)
	}
	slot, err := models.ParseSlot(p[5])
	if err != nil {
		return r, unknownPath(path)
	}
	if !variant.For(r.Variant).SlotActive(slot) {
		return r, invalidValue(path, "photo slot is not used for this report kind")
	}
	return updateSite(r, p[1], path, func(s models.Site) (models.Site, error) {
		return updateActivity(s, p[3], path, func(a models.ActivityDetail) (models.ActivityDetail, error) {
			photos, err := fn(a.Photos.Get(slot))
			if err != nil {
				return a, err
			}
			a.Photos = a.Photos.With(slot, photos)
			return a, nil
		})
	})
}

// Check verifies the minimum-size invariants of a whole tree
func Check(r models.Report) error {
	if len(r.Sites) < MinSites {
		return minCardinality(CollSites, CollSites, MinSites)
	}
	minHeavy := variant.For(r.Variant).MinHeavyEquipment()
	for _, s := range r.Sites {
		sp := SitePath(s.Key)
		if len(s.Activities) < MinActivities {
			return minCardinality(Join(sp, CollActivities), CollActivities, MinActivities)
		}
		if len(s.Equipment) < MinEquipment {
			return minCardinality(Join(sp, CollEquipment), CollEquipment, MinEquipment)
		}
		if len(s.HeavyEquipment) < minHeavy {
			return minCardinality(Join(sp, CollHeavyEquipment), CollHeavyEquipment, minHeavy)
		}
		for _, a := range s.Activities {
			if len(a.Materials) < MinMaterials {
				return minCardinality(Join(ActivityPath(s.Key, a.Key), CollMaterials), CollMaterials, MinMaterials)
			}
		}
	}
	return nil
}

// Fill tops up collections below their minimum size with blank elements.
// Used after loading a report whose rows were filtered as blank on save.
func Fill(r models.Report) models.Report {
	if len(r.Sites) == 0 {
		r.Sites = []models.Site{NewSite(r.Variant)}
		return r
	}
	minHeavy := variant.For(r.Variant).MinHeavyEquipment()
	sites := make([]models.Site, len(r.Sites))
	for i, s := range r.Sites {
		if len(s.Activities) == 0 {
			s.Activities = []models.ActivityDetail{models.NewActivityDetail()}
		}
		activities := make([]models.ActivityDetail, len(s.Activities))
		for j, a := range s.Activities {
			if len(a.Materials) == 0 {
				a.Materials = []models.Material{models.NewMaterial()}
			}
			activities[j] = a
		}
		s.Activities = activities
		if len(s.Equipment) == 0 {
			s.Equipment = []models.Equipment{models.NewEquipment()}
		}
		if len(s.HeavyEquipment) < minHeavy {
			s.HeavyEquipment = appendCopy(s.HeavyEquipment, models.NewHeavyEquipmentUsage())
		}
		sites[i] = s
	}
	r.Sites = sites
	return r
}

func updateSite(r models.Report, key, path string, fn func(models.Site) (models.Site, error)) (models.Report, error) {
	i := indexOf(r.Sites, key, siteKey)
	if i < 0 {
		return r, unknownPath(path)
	}
	s, err := fn(r.Sites[i])
	if err != nil {
		return r, err
	}
	out := r
	out.Sites = replaceAt(r.Sites, i, s)
	return out, nil
}

func updateActivity(s models.Site, key, path string, fn func(models.ActivityDetail) (models.ActivityDetail, error)) (models.Site, error) {
	i := indexOf(s.Activities, key, activityKey)
	if i < 0 {
		return s, unknownPath(path)
	}
	a, err := fn(s.Activities[i])
	if err != nil {
		return s, err
	}
	out := s
	out.Activities = replaceAt(s.Activities, i, a)
	return out, nil
}

func siteKey(s models.Site) string { return s.Key }
func activityKey(a models.ActivityDetail) string { return a.Key }
func materialKey(m models.Material) string { return m.Key }
func equipmentKey(e models.Equipment) string { return e.Key }
func heavyKey(h models.HeavyEquipmentUsage) string { return h.Key }

func indexOf[T any](items []T, key string, keyOf func(T) string) int {
	for i, item := range items {
		if keyOf(item) == key {
			return i
		}
	}
	return -1
}

func replaceAt[T any](items []T, i int, v T) []T {
	out := make([]T, len(items))
	copy(out, items)
	out[i] = v
	return out
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func appendCopy[T any](items []T, v T) []T {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return append(out, v)
}
