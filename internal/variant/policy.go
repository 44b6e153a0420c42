// Package variant holds the per-report-kind rule table: which fields and
// child collections are mandatory, optional or suppressed.
package variant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saluran/fieldreport-server/internal/models"
)

// Requirement says how a field or collection is treated for a variant
type Requirement int

const (
	Suppressed Requirement = iota
	Optional
	Mandatory
)

func (r Requirement) String() string {
	switch r {
	case Mandatory:
		return "mandatory"
	case Optional:
		return "optional"
	default:
		return "suppressed"
	}
}

// Policy is the rule set of one variant
type Policy struct {
	Variant        models.Variant
	ReportDate     Requirement
	Period         Requirement
	Measurements   Requirement // length, width, sediment height, volume
	Targets        Requirement // planned/realized length & volume, remaining days
	HeavyEquipment Requirement
	Slots          map[models.Slot]Requirement
	PersonnelRoles []string
}

var policies = map[models.Variant]Policy{
	models.VariantDaily: {
		Variant:        models.VariantDaily,
		ReportDate:     Mandatory,
		Period:         Optional,
		Measurements:   Optional,
		Targets:        Suppressed,
		HeavyEquipment: Mandatory,
		Slots: map[models.Slot]Requirement{
			models.SlotBefore:   Optional,
			models.SlotProgress: Optional,
			models.SlotAfter:    Optional,
			models.SlotSketch:   Optional,
		},
		PersonnelRoles: []string{"pekerja", "operator", "sopir"},
	},
	models.VariantMonthly: {
		Variant:        models.VariantMonthly,
		ReportDate:     Optional,
		Period:         Mandatory,
		Measurements:   Optional,
		Targets:        Suppressed,
		HeavyEquipment: Mandatory,
		Slots: map[models.Slot]Requirement{
			models.SlotBefore:   Optional,
			models.SlotProgress: Optional,
			models.SlotAfter:    Optional,
			models.SlotSketch:   Optional,
		},
		PersonnelRoles: []string{"pekerja", "operator", "sopir"},
	},
	models.VariantTertiary: {
		Variant:        models.VariantTertiary,
		ReportDate:     Mandatory,
		Period:         Optional,
		Measurements:   Suppressed,
		Targets:        Optional,
		HeavyEquipment: Suppressed,
		Slots: map[models.Slot]Requirement{
			models.SlotBefore:   Optional,
			models.SlotProgress: Suppressed,
			models.SlotAfter:    Optional,
			models.SlotSketch:   Suppressed,
		},
		PersonnelRoles: []string{"pekerja", "mandor"},
	},
}

// For returns the policy of a variant. Unknown variants get the daily rules.
func For(v models.Variant) Policy {
	if p, ok := policies[v]; ok {
		return p
	}
	return policies[models.VariantDaily]
}

// DerivesVolume reports whether the volume field is computed from the
// measurements instead of typed in.
func (p Policy) DerivesVolume() bool {
	return p.Measurements != Suppressed
}

// SlotActive reports whether a photo slot is shown and persisted
func (p Policy) SlotActive(slot models.Slot) bool {
	return p.Slots[slot] != Suppressed
}

// ActiveSlots lists the slots in document order
func (p Policy) ActiveSlots() []models.Slot {
	out := make([]models.Slot, 0, len(models.Slots))
	for _, s := range models.Slots {
		if p.SlotActive(s) {
			out = append(out, s)
		}
	}
	return out
}

// MinHeavyEquipment is the minimum number of heavy-equipment items per site
func (p Policy) MinHeavyEquipment() int {
	if p.HeavyEquipment == Suppressed {
		return 0
	}
	return 1
}

func (p Policy) allowsRole(role string) bool {
	for _, r := range p.PersonnelRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Normalize drops everything the variant suppresses. The result is what gets
// persisted and rendered; the editable tree keeps its values (a saved draft
// is rebased with tree.Rebase) so switching variants back and forth during
// editing loses nothing.
func (p Policy) Normalize(r models.Report) models.Report {
	r.Variant = p.Variant
	if p.ReportDate == Suppressed {
		r.Date = ""
	}
	sites := make([]models.Site, len(r.Sites))
	for i, s := range r.Sites {
		sites[i] = p.normalizeSite(s)
	}
	r.Sites = sites
	return r
}

func (p Policy) normalizeSite(s models.Site) models.Site {
	if p.Measurements == Suppressed {
		s.Length, s.Width, s.SedimentHeight, s.Volume, s.VolumeAuto = "", "", "", "", ""
	}
	if p.Targets == Suppressed {
		s.PlannedLength, s.RealizedLength, s.PlannedVolume, s.RealizedVolume = "", "", "", ""
		s.RemainingDays = nil
	}
	if p.HeavyEquipment == Suppressed {
		s.HeavyEquipment = nil
	}
	if len(s.Personnel) > 0 {
		personnel := make(map[string]int, len(s.Personnel))
		for role, n := range s.Personnel {
			if p.allowsRole(role) {
				personnel[role] = n
			}
		}
		s.Personnel = personnel
	}
	activities := make([]models.ActivityDetail, len(s.Activities))
	for i, a := range s.Activities {
		for _, slot := range models.Slots {
			if !p.SlotActive(slot) {
				a.Photos = a.Photos.With(slot, nil)
			}
		}
		activities[i] = a
	}
	s.Activities = activities
	return s
}

// ErrMissingField marks a mandatory field left empty
var ErrMissingField = errors.New("mandatory field missing")

// Validate checks the mandatory fields of a report
func (p Policy) Validate(r models.Report) error {
	var missing []string
	if p.ReportDate == Mandatory && strings.TrimSpace(r.Date) == "" {
		missing = append(missing, "date")
	}
	if p.Period == Mandatory && strings.TrimSpace(r.Period) == "" {
		missing = append(missing, "period")
	}
	if len(r.Sites) == 0 {
		missing = append(missing, "sites")
	}
	for i, s := range r.Sites {
		if strings.TrimSpace(s.Street) == "" {
			missing = append(missing, fmt.Sprintf("sites[%d].street", i))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
