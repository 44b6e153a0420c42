package tree

import (
	"fmt"
	"strings"
)

// Collection names used in paths
const (
	CollSites          = "sites"
	CollActivities     = "activities"
	CollMaterials      = "materials"
	CollEquipment      = "equipment"
	CollHeavyEquipment = "heavy_equipment"
	CollPhotos         = "photos"
)

// Path addresses a node, collection or field of a report, e.g.
//
//	sites/{siteKey}/activities/{detailKey}/materials/{materialKey}/type
type Path []string

// ParsePath splits a slash separated path
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnknownPath)
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPath, s)
		}
	}
	return Path(parts), nil
}

func (p Path) String() string { return strings.Join(p, "/") }

// Join builds a path from segments
func Join(segments ...string) string { return strings.Join(segments, "/") }

// SitePath returns the path of a site
func SitePath(siteKey string) string { return Join(CollSites, siteKey) }

// ActivityPath returns the path of an activity detail
func ActivityPath(siteKey, detailKey string) string {
	return Join(CollSites, siteKey, CollActivities, detailKey)
}

// SlotPath returns the path of a photo slot
func SlotPath(siteKey, detailKey, slot string) string {
	return Join(CollSites, siteKey, CollActivities, detailKey, CollPhotos, slot)
}
