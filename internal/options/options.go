// Package options resolves report fields whose value is either an entry of a
// fixed vocabulary or free text typed by the operator.
//
// Four field families use this pattern: equipment name, heavy-equipment type,
// material type and sediment type. Values are carried as a Choice; the form
// sentinel CustomLabel only exists in the Display projection and is never
// stored or compared against a persisted value.
package options

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Family identifies one vocabulary-backed field family
type Family string

const (
	FamilyEquipment      Family = "equipment"
	FamilyHeavyEquipment Family = "heavy_equipment"
	FamilyMaterial       Family = "material"
	FamilySediment       Family = "sediment"
)

// CustomLabel is the selection the form shows when the value is free text.
const CustomLabel = "Lainnya"

// Vocabulary is the fixed option set of one family
type Vocabulary struct {
	family Family
	values []string
	index  map[string]struct{}
}

func newVocabulary(family Family, values ...string) *Vocabulary {
	index := make(map[string]struct{}, len(values))
	for _, v := range values {
		index[v] = struct{}{}
	}
	return &Vocabulary{family: family, values: values, index: index}
}

var (
	Equipment = newVocabulary(FamilyEquipment,
		"Cangkul", "Sekop", "Linggis", "Gerobak Sorong", "Ember", "Karung",
		"Garpu Sampah", "Parang", "Sapu Lidi", "Pompa Air", "Tali Tambang",
	)
	HeavyEquipment = newVocabulary(FamilyHeavyEquipment,
		"Excavator", "Mini Excavator", "Backhoe Loader", "Dump Truck",
		"Truk Tangki Air", "Mobil Penyedot Lumpur", "Amphibious Excavator",
	)
	Material = newVocabulary(FamilyMaterial,
		"Semen", "Pasir", "Batu Kali", "Batu Split", "Besi Beton",
		"Kawat Bendrat", "Papan Kayu", "U-Ditch", "Buis Beton", "Karung Pasir",
	)
	Sediment = newVocabulary(FamilySediment,
		"Lumpur", "Pasir", "Sampah", "Batu", "Tanah", "Lumpur Bercampur Sampah",
	)
)

// EquipmentUnits is the unit vocabulary offered for equipment line items.
var EquipmentUnits = []string{"Unit", "Buah", "Set", "Batang", "Lembar"}

var materialUnits = map[string]string{
	"Semen":         "Sak",
	"Pasir":         "m³",
	"Batu Kali":     "m³",
	"Batu Split":    "m³",
	"Besi Beton":    "Batang",
	"Kawat Bendrat": "Kg",
	"Papan Kayu":    "Lembar",
	"U-Ditch":       "Buah",
	"Buis Beton":    "Buah",
	"Karung Pasir":  "Buah",
}

// DefaultUnit returns the unit that goes with a predefined material type.
func DefaultUnit(materialType string) (string, bool) {
	unit, ok := materialUnits[materialType]
	return unit, ok
}

// For returns the vocabulary of a family
func For(family Family) (*Vocabulary, error) {
	switch family {
	case FamilyEquipment:
		return Equipment, nil
	case FamilyHeavyEquipment:
		return HeavyEquipment, nil
	case FamilyMaterial:
		return Material, nil
	case FamilySediment:
		return Sediment, nil
	default:
		return nil, fmt.Errorf("unknown option family %q", family)
	}
}

// Family returns the family this vocabulary belongs to
func (v *Vocabulary) Family() Family { return v.family }

// Values returns the options in display order
func (v *Vocabulary) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}

// Contains reports whether s is one of the predefined options
func (v *Vocabulary) Contains(s string) bool {
	_, ok := v.index[s]
	return ok
}

// Classify turns a stored value into a Choice. The empty string is the unset
// state, never an override.
func (v *Vocabulary) Classify(s string) Choice {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Choice{}
	case v.Contains(s):
		return Selected(s)
	default:
		return Override(s)
	}
}

// Select applies a selection coming from the form to the current choice.
// Picking CustomLabel keeps existing override text; picking a predefined
// option drops it, so a later switch back to custom starts empty.
func (v *Vocabulary) Select(current Choice, selection string) Choice {
	selection = strings.TrimSpace(selection)
	switch {
	case selection == "":
		return Choice{}
	case selection == CustomLabel:
		if current.IsOverride() {
			return current
		}
		return Override("")
	case v.Contains(selection):
		return Selected(selection)
	default:
		return Override(selection)
	}
}

type choiceKind uint8

const (
	kindUnset choiceKind = iota
	kindSelected
	kindOverride
)

// Choice is either Selected(value) from the vocabulary or Override(text).
// The zero value is unset.
type Choice struct {
	kind  choiceKind
	value string
}

func Selected(value string) Choice { return Choice{kind: kindSelected, value: value} }

func Override(text string) Choice { return Choice{kind: kindOverride, value: text} }

func (c Choice) IsSet() bool      { return c.kind != kindUnset }
func (c Choice) IsSelected() bool { return c.kind == kindSelected }
func (c Choice) IsOverride() bool { return c.kind == kindOverride }

// Resolve returns the value that is persisted and printed.
func (c Choice) Resolve() string {
	if c.kind == kindUnset {
		return ""
	}
	return strings.TrimSpace(c.value)
}

// WithText sets the free-text of an override. Typing custom text implies
// the custom selection.
func (c Choice) WithText(text string) Choice {
	return Override(text)
}

func (c Choice) String() string {
	switch c.kind {
	case kindSelected:
		return "Selected(" + c.value + ")"
	case kindOverride:
		return "Override(" + c.value + ")"
	default:
		return "Unset"
	}
}

type choiceJSON struct {
	Selected *string `json:"selected,omitempty"`
	Override *string `json:"override,omitempty"`
}

func (c Choice) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case kindSelected:
		return json.Marshal(choiceJSON{Selected: &c.value})
	case kindOverride:
		return json.Marshal(choiceJSON{Override: &c.value})
	default:
		return []byte("null"), nil
	}
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Choice{}
		return nil
	}
	var raw choiceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode choice: %w", err)
	}
	switch {
	case raw.Selected != nil && raw.Override != nil:
		return fmt.Errorf("decode choice: both selected and override set")
	case raw.Selected != nil:
		*c = Selected(*raw.Selected)
	case raw.Override != nil:
		*c = Override(*raw.Override)
	default:
		*c = Choice{}
	}
	return nil
}

// Display is what a form renders for an option field: the dropdown
// selection and, for overrides, the free-text box content.
type Display struct {
	Selection string `json:"selection"`
	Text      string `json:"text,omitempty"`
	Custom    bool   `json:"custom"`
}

// Present projects a choice for the form. Unset renders as the placeholder
// (empty selection), not as a custom-text box.
func Present(c Choice) Display {
	switch c.kind {
	case kindSelected:
		return Display{Selection: c.value}
	case kindOverride:
		return Display{Selection: CustomLabel, Text: c.value, Custom: true}
	default:
		return Display{}
	}
}
