// Package models defines the report tree edited by operators and the flat
// rows it is persisted as. Tables follow the Postgres schema in
// internal/database/migrations.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saluran/fieldreport-server/internal/options"
)

// Variant is the report kind
type Variant string

const (
	VariantDaily    Variant = "daily"
	VariantMonthly  Variant = "monthly"
	VariantTertiary Variant = "tertiary"
)

// ParseVariant validates a variant tag
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantDaily, VariantMonthly, VariantTertiary:
		return v, nil
	default:
		return "", fmt.Errorf("unknown report variant %q", s)
	}
}

// ChannelType is the kind of drainage channel handled
type ChannelType string

const (
	ChannelUnset  ChannelType = ""
	ChannelOpen   ChannelType = "terbuka"
	ChannelClosed ChannelType = "tertutup"
	ChannelBoth   ChannelType = "terbuka_tertutup"
)

// ParseChannelType validates a channel type
func ParseChannelType(s string) (ChannelType, error) {
	switch c := ChannelType(strings.TrimSpace(s)); c {
	case ChannelUnset, ChannelOpen, ChannelClosed, ChannelBoth:
		return c, nil
	default:
		return "", fmt.Errorf("unknown channel type %q", s)
	}
}

// DateLayout is the wire and form format of report and activity dates
const DateLayout = "2006-01-02"

// NewKey returns a fresh reconciliation key. Keys are never reused.
func NewKey() string {
	return uuid.NewString()
}

// Report is one submission. ID is empty until the store assigns one.
type Report struct {
	Key     string  `json:"key"`
	ID      string  `json:"id,omitempty"`
	Date    string  `json:"date"`
	Period  string  `json:"period"`
	Variant Variant `json:"variant"`
	Owner   string  `json:"owner,omitempty"`
	Sites   []Site  `json:"sites"`
}

// Site is one work location ("Kegiatan") within a report
type Site struct {
	Key            string `json:"key"`
	ID             string `json:"id,omitempty"`
	Street         string `json:"street"`
	District       string `json:"district"`
	SubDistrict    string `json:"sub_district"`
	Length         string `json:"length"`
	Width          string `json:"width"`
	SedimentHeight string `json:"sediment_height"`
	Volume         string `json:"volume"`
	// VolumeAuto is the last volume the derived-field engine wrote.
	VolumeAuto     string                `json:"volume_auto,omitempty"`
	PlannedLength  string                `json:"planned_length"`
	RealizedLength string                `json:"realized_length"`
	PlannedVolume  string                `json:"planned_volume"`
	RealizedVolume string                `json:"realized_volume"`
	RemainingDays  *int                  `json:"remaining_days,omitempty"`
	Coordinators   []string              `json:"coordinators"`
	Personnel      map[string]int        `json:"personnel"`
	Notes          string                `json:"notes"`
	ActivityDate   string                `json:"activity_date"`
	Activities     []ActivityDetail      `json:"activities"`
	Equipment      []Equipment           `json:"equipment"`
	HeavyEquipment []HeavyEquipmentUsage `json:"heavy_equipment"`
}

// ActivityDetail is one handling activity performed at a site
type ActivityDetail struct {
	Key         string         `json:"key"`
	ID          string         `json:"id,omitempty"`
	Channel     ChannelType    `json:"channel"`
	Sediment    options.Choice `json:"sediment"`
	Description string         `json:"description"`
	Photos      PhotoSet       `json:"photos"`
	Materials   []Material     `json:"materials"`
}

// Material is a consumable line item
type Material struct {
	Key      string         `json:"key"`
	ID       string         `json:"id,omitempty"`
	Type     options.Choice `json:"type"`
	Quantity string         `json:"quantity"`
	Unit     string         `json:"unit"`
	Notes    string         `json:"notes"`
}

// Blank reports whether the line item is an untouched placeholder
func (m Material) Blank() bool {
	return m.Type.Resolve() == "" && strings.TrimSpace(m.Quantity) == "" && strings.TrimSpace(m.Unit) == ""
}

// Equipment is a tool line item used at a site
type Equipment struct {
	Key      string         `json:"key"`
	ID       string         `json:"id,omitempty"`
	Name     options.Choice `json:"name"`
	Quantity int            `json:"quantity"`
	Unit     string         `json:"unit"`
}

func (e Equipment) Blank() bool {
	return e.Name.Resolve() == "" && e.Quantity == 0 && strings.TrimSpace(e.Unit) == ""
}

// Fuel is one fuel-consumption sub-field
type Fuel struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

func (f Fuel) Blank() bool {
	return strings.TrimSpace(f.Amount) == "" && strings.TrimSpace(f.Unit) == ""
}

// HeavyEquipmentUsage records heavy machinery operated at a site
type HeavyEquipmentUsage struct {
	Key       string         `json:"key"`
	ID        string         `json:"id,omitempty"`
	Type      options.Choice `json:"type"`
	Quantity  string         `json:"quantity"`
	Diesel    Fuel           `json:"diesel"`
	Petrol    Fuel           `json:"petrol"`
	Lubricant Fuel           `json:"lubricant"`
	Notes     string         `json:"notes"`
}

func (h HeavyEquipmentUsage) Blank() bool {
	return h.Type.Resolve() == "" && strings.TrimSpace(h.Quantity) == "" &&
		h.Diesel.Blank() && h.Petrol.Blank() && h.Lubricant.Blank() &&
		strings.TrimSpace(h.Notes) == ""
}

// NewMaterial returns an empty material row with a fresh key
func NewMaterial() Material {
	return Material{Key: NewKey()}
}

// NewActivityDetail returns an activity with its one default material row
func NewActivityDetail() ActivityDetail {
	return ActivityDetail{Key: NewKey(), Materials: []Material{NewMaterial()}}
}

func NewEquipment() Equipment {
	return Equipment{Key: NewKey()}
}

func NewHeavyEquipmentUsage() HeavyEquipmentUsage {
	return HeavyEquipmentUsage{Key: NewKey()}
}

// ParseDate converts a form date to a nullable time
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

// FormatDate is the inverse of ParseDate
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
