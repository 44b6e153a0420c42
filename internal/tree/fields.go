package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/saluran/fieldreport-server/internal/derived"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/options"
	"github.com/saluran/fieldreport-server/internal/variant"
)

// SetField assigns value to the field at path. Values come from decoded JSON,
// so strings, numbers, string lists and nil are accepted where they fit.
//
// Option fields (equipment name, heavy-equipment type, material type,
// sediment type) take the selection shown in the form; the matching
// "*_text" field carries the free text of a custom value.
func SetField(r models.Report, path string, value any) (models.Report, error) {
	p, err := ParsePath(path)
	if err != nil {
		return r, err
	}

	if len(p) == 1 {
		return setReportField(r, p[0], path, value)
	}
	if p[0] != CollSites || len(p) < 3 {
		return r, unknownPath(path)
	}

	return updateSite(r, p[1], path, func(s models.Site) (models.Site, error) {
		rest := p[2:]
		switch {
		case len(rest) == 1:
			return setSiteField(s, r.Variant, rest[0], path, value)
		case len(rest) == 3 && rest[0] == CollActivities:
			return updateActivity(s, rest[1], path, func(a models.ActivityDetail) (models.ActivityDetail, error) {
				return setActivityField(a, rest[2], path, value)
			})
		case len(rest) == 5 && rest[0] == CollActivities && rest[2] == CollMaterials:
			return updateActivity(s, rest[1], path, func(a models.ActivityDetail) (models.ActivityDetail, error) {
				i := indexOf(a.Materials, rest[3], materialKey)
				if i < 0 {
					return a, unknownPath(path)
				}
				m, err := setMaterialField(a.Materials[i], rest[4], path, value)
				if err != nil {
					return a, err
				}
				a.Materials = replaceAt(a.Materials, i, m)
				return a, nil
			})
		case len(rest) == 3 && rest[0] == CollEquipment:
			i := indexOf(s.Equipment, rest[1], equipmentKey)
			if i < 0 {
				return s, unknownPath(path)
			}
			e, err := setEquipmentField(s.Equipment[i], rest[2], path, value)
			if err != nil {
				return s, err
			}
			s.Equipment = replaceAt(s.Equipment, i, e)
			return s, nil
		case len(rest) == 3 && rest[0] == CollHeavyEquipment:
			i := indexOf(s.HeavyEquipment, rest[1], heavyKey)
			if i < 0 {
				return s, unknownPath(path)
			}
			h, err := setHeavyField(s.HeavyEquipment[i], rest[2], path, value)
			if err != nil {
				return s, err
			}
			s.HeavyEquipment = replaceAt(s.HeavyEquipment, i, h)
			return s, nil
		default:
			return s, unknownPath(path)
		}
	})
}

func setReportField(r models.Report, field, path string, value any) (models.Report, error) {
	text, err := asString(value, path)
	if err != nil {
		return r, err
	}
	switch field {
	case "date":
		if _, err := models.ParseDate(text); err != nil {
			return r, invalidValue(path, "date must be YYYY-MM-DD")
		}
		r.Date = strings.TrimSpace(text)
	case "period":
		r.Period = text
	case "variant":
		v, err := models.ParseVariant(text)
		if err != nil {
			return r, invalidValue(path, err.Error())
		}
		r.Variant = v
		// Switching back from tertiary restores the heavy-equipment minimum.
		r = Fill(r)
	default:
		return r, unknownPath(path)
	}
	return r, nil
}

func setSiteField(s models.Site, v models.Variant, field, path string, value any) (models.Site, error) {
	if field == "coordinators" {
		list, err := asStrings(value, path)
		if err != nil {
			return s, err
		}
		s.Coordinators = coordinatorSet(list)
		return s, nil
	}
	if role, ok := strings.CutPrefix(field, "personnel."); ok {
		return setPersonnel(s, v, role, path, value)
	}

	text, err := asString(value, path)
	if err != nil {
		return s, err
	}
	measurement := false
	switch field {
	case "street":
		s.Street = text
	case "district":
		s.District = text
	case "sub_district":
		s.SubDistrict = text
	case "length":
		s.Length, measurement = text, true
	case "width":
		s.Width, measurement = text, true
	case "sediment_height":
		s.SedimentHeight, measurement = text, true
	case "volume":
		s.Volume = strings.TrimSpace(text)
	case "planned_length":
		s.PlannedLength = text
	case "realized_length":
		s.RealizedLength = text
	case "planned_volume":
		s.PlannedVolume = text
	case "realized_volume":
		s.RealizedVolume = text
	case "remaining_days":
		days, err := optionalInt(text, path)
		if err != nil {
			return s, err
		}
		s.RemainingDays = days
	case "notes":
		s.Notes = text
	case "activity_date":
		if _, err := models.ParseDate(text); err != nil {
			return s, invalidValue(path, "date must be YYYY-MM-DD")
		}
		s.ActivityDate = strings.TrimSpace(text)
	default:
		return s, unknownPath(path)
	}
	if measurement && variant.For(v).DerivesVolume() {
		s = derived.Recompute(s)
	}
	return s, nil
}

func setPersonnel(s models.Site, v models.Variant, role, path string, value any) (models.Site, error) {
	allowed := false
	for _, r := range variant.For(v).PersonnelRoles {
		if r == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return s, invalidValue(path, fmt.Sprintf("role %q is not recorded for this report kind", role))
	}
	text, err := asString(value, path)
	if err != nil {
		return s, err
	}
	n, err := optionalInt(text, path)
	if err != nil {
		return s, err
	}
	personnel := make(map[string]int, len(s.Personnel)+1)
	for k, c := range s.Personnel {
		personnel[k] = c
	}
	if n == nil || *n == 0 {
		delete(personnel, role)
	} else {
		if *n < 0 {
			return s, invalidValue(path, "personnel count cannot be negative")
		}
		personnel[role] = *n
	}
	s.Personnel = personnel
	return s, nil
}

func setActivityField(a models.ActivityDetail, field, path string, value any) (models.ActivityDetail, error) {
	text, err := asString(value, path)
	if err != nil {
		return a, err
	}
	switch field {
	case "channel":
		c, err := models.ParseChannelType(text)
		if err != nil {
			return a, invalidValue(path, err.Error())
		}
		a.Channel = c
	case "sediment":
		a.Sediment = options.Sediment.Select(a.Sediment, text)
	case "sediment_text":
		a.Sediment = a.Sediment.WithText(text)
	case "description":
		a.Description = text
	default:
		return a, unknownPath(path)
	}
	return a, nil
}

func setMaterialField(m models.Material, field, path string, value any) (models.Material, error) {
	text, err := asString(value, path)
	if err != nil {
		return m, err
	}
	switch field {
	case "type":
		m.Type = options.Material.Select(m.Type, text)
		if m.Type.IsSelected() {
			if unit, ok := options.DefaultUnit(m.Type.Resolve()); ok {
				m.Unit = unit
			}
		}
	case "type_text":
		m.Type = m.Type.WithText(text)
	case "quantity":
		m.Quantity = text
	case "unit":
		m.Unit = text
	case "notes":
		m.Notes = text
	default:
		return m, unknownPath(path)
	}
	return m, nil
}

func setEquipmentField(e models.Equipment, field, path string, value any) (models.Equipment, error) {
	text, err := asString(value, path)
	if err != nil {
		return e, err
	}
	switch field {
	case "name":
		e.Name = options.Equipment.Select(e.Name, text)
	case "name_text":
		e.Name = e.Name.WithText(text)
	case "quantity":
		n, err := optionalInt(text, path)
		if err != nil {
			return e, err
		}
		if n == nil {
			e.Quantity = 0
			break
		}
		if *n <= 0 {
			return e, invalidValue(path, "quantity must be a positive whole number")
		}
		e.Quantity = *n
	case "unit":
		text = strings.TrimSpace(text)
		if text != "" && !containsString(options.EquipmentUnits, text) {
			return e, invalidValue(path, fmt.Sprintf("unit %q is not one of %s", text, strings.Join(options.EquipmentUnits, ", ")))
		}
		e.Unit = text
	default:
		return e, unknownPath(path)
	}
	return e, nil
}

func setHeavyField(h models.HeavyEquipmentUsage, field, path string, value any) (models.HeavyEquipmentUsage, error) {
	text, err := asString(value, path)
	if err != nil {
		return h, err
	}
	switch field {
	case "type":
		h.Type = options.HeavyEquipment.Select(h.Type, text)
	case "type_text":
		h.Type = h.Type.WithText(text)
	case "quantity":
		h.Quantity = text
	case "diesel_amount":
		h.Diesel.Amount = text
	case "diesel_unit":
		h.Diesel.Unit = text
	case "petrol_amount":
		h.Petrol.Amount = text
	case "petrol_unit":
		h.Petrol.Unit = text
	case "lubricant_amount":
		h.Lubricant.Amount = text
	case "lubricant_unit":
		h.Lubricant.Unit = text
	case "notes":
		h.Notes = text
	default:
		return h, unknownPath(path)
	}
	return h, nil
}

func asString(value any, path string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", invalidValue(path, fmt.Sprintf("unsupported value type %T", value))
	}
}

func asStrings(value any, path string) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalidValue(path, "expected a list of names")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, invalidValue(path, "expected a list of names")
	}
}

func optionalInt(text, path string) (*int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, invalidValue(path, "expected a whole number")
	}
	return &n, nil
}

// coordinatorSet trims, drops blanks and duplicates, and sorts: the
// coordinator list is a set.
func coordinatorSet(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
