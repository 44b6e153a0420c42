// Package render turns a saved report into printable documents: HTML, PDF
// through headless Chrome, and XLSX workbooks.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/variant"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnresolved means the report still holds pending photos
	ErrUnresolved = errors.New("report has photos that were not uploaded")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var titleCaser = cases.Title(language.Indonesian)

var variantNames = map[models.Variant]string{
	models.VariantDaily:    "harian",
	models.VariantMonthly:  "bulanan",
	models.VariantTertiary: "saluran tersier",
}

var channelLabels = map[models.ChannelType]string{
	models.ChannelOpen:   "Saluran Terbuka",
	models.ChannelClosed: "Saluran Tertutup",
	models.ChannelBoth:   "Saluran Terbuka dan Tertutup",
}

var slotLabels = map[models.Slot]string{
	models.SlotBefore:   "Sebelum",
	models.SlotProgress: "Proses 50%",
	models.SlotAfter:    "Sesudah",
	models.SlotSketch:   "Sketsa",
}

// Document is the print projection of a report. Option fields hold their
// resolved text and every photo is a stored URL.
type Document struct {
	Title            string
	Variant          models.Variant
	Date             string
	Period           string
	ShowMeasurements bool
	ShowTargets      bool
	ShowHeavy        bool
	Sites            []SiteDoc
}

type SiteDoc struct {
	Label          string
	Street         string
	District       string
	SubDistrict    string
	Length         string
	Width          string
	SedimentHeight string
	Volume         string
	PlannedLength  string
	RealizedLength string
	PlannedVolume  string
	RealizedVolume string
	RemainingDays  string
	Coordinators   string
	Personnel      []PersonnelDoc
	Notes          string
	ActivityDate   string
	Activities     []ActivityDoc
	Equipment      []EquipmentDoc
	HeavyEquipment []HeavyEquipmentDoc
}

type PersonnelDoc struct {
	Role  string
	Count int
}

type ActivityDoc struct {
	Number      int
	Channel     string
	Sediment    string
	Description string
	Photos      []PhotoGroup
	Materials   []MaterialDoc
}

type PhotoGroup struct {
	Label string
	URLs  []string
}

type MaterialDoc struct {
	Type     string
	Quantity string
	Unit     string
	Notes    string
}

type EquipmentDoc struct {
	Name     string
	Quantity int
	Unit     string
}

type HeavyEquipmentDoc struct {
	Type      string
	Quantity  string
	Diesel    string
	Petrol    string
	Lubricant string
	Notes     string
}

// NewDocument builds the print projection. It fails with ErrUnresolved if a
// photo has not reached object storage.
func NewDocument(r models.Report) (*Document, error) {
	p := variant.For(r.Variant)
	r = p.Normalize(r)

	doc := &Document{
		Title:            Title(r.Variant),
		Variant:          r.Variant,
		Date:             r.Date,
		Period:           r.Period,
		ShowMeasurements: p.Measurements != variant.Suppressed,
		ShowTargets:      p.Targets != variant.Suppressed,
		ShowHeavy:        p.HeavyEquipment != variant.Suppressed,
	}

	for i, s := range r.Sites {
		sd := SiteDoc{
			Label:          fmt.Sprintf("Kegiatan %d", i+1),
			Street:         s.Street,
			District:       s.District,
			SubDistrict:    s.SubDistrict,
			Length:         s.Length,
			Width:          s.Width,
			SedimentHeight: s.SedimentHeight,
			Volume:         s.Volume,
			PlannedLength:  s.PlannedLength,
			RealizedLength: s.RealizedLength,
			PlannedVolume:  s.PlannedVolume,
			RealizedVolume: s.RealizedVolume,
			Coordinators:   strings.Join(s.Coordinators, ", "),
			Personnel:      personnel(s.Personnel),
			Notes:          s.Notes,
			ActivityDate:   s.ActivityDate,
		}
		if s.RemainingDays != nil {
			sd.RemainingDays = fmt.Sprintf("%d hari", *s.RemainingDays)
		}

		for j, a := range s.Activities {
			ad := ActivityDoc{
				Number:      j + 1,
				Channel:     channelLabels[a.Channel],
				Sediment:    a.Sediment.Resolve(),
				Description: a.Description,
			}
			for _, slot := range p.ActiveSlots() {
				urls, err := models.URLs(a.Photos.Get(slot))
				if err != nil {
					return nil, fmt.Errorf("%w: %s %s: %v", ErrUnresolved, sd.Label, slot, err)
				}
				if len(urls) > 0 {
					ad.Photos = append(ad.Photos, PhotoGroup{Label: slotLabels[slot], URLs: urls})
				}
			}
			for _, m := range a.Materials {
				if m.Blank() {
					continue
				}
				ad.Materials = append(ad.Materials, MaterialDoc{
					Type:     m.Type.Resolve(),
					Quantity: m.Quantity,
					Unit:     m.Unit,
					Notes:    m.Notes,
				})
			}
			sd.Activities = append(sd.Activities, ad)
		}

		for _, e := range s.Equipment {
			if e.Blank() {
				continue
			}
			sd.Equipment = append(sd.Equipment, EquipmentDoc{Name: e.Name.Resolve(), Quantity: e.Quantity, Unit: e.Unit})
		}
		for _, h := range s.HeavyEquipment {
			if h.Blank() {
				continue
			}
			sd.HeavyEquipment = append(sd.HeavyEquipment, HeavyEquipmentDoc{
				Type:      h.Type.Resolve(),
				Quantity:  h.Quantity,
				Diesel:    fuel(h.Diesel),
				Petrol:    fuel(h.Petrol),
				Lubricant: fuel(h.Lubricant),
				Notes:     h.Notes,
			})
		}
		doc.Sites = append(doc.Sites, sd)
	}
	return doc, nil
}

// Title is the document heading of a variant
func Title(v models.Variant) string {
	name, ok := variantNames[v]
	if !ok {
		name = variantNames[models.VariantDaily]
	}
	return titleCaser.String("laporan " + name + " pemeliharaan saluran")
}

func personnel(counts map[string]int) []PersonnelDoc {
	roles := make([]string, 0, len(counts))
	for role := range counts {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	out := make([]PersonnelDoc, 0, len(roles))
	for _, role := range roles {
		out = append(out, PersonnelDoc{Role: titleCaser.String(role), Count: counts[role]})
	}
	return out
}

func fuel(f models.Fuel) string {
	return strings.TrimSpace(f.Amount + " " + f.Unit)
}

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	reHyphen   = regexp.MustCompile(`-+`)
)

// Filename builds an ASCII file name for a document, without extension
func (d *Document) Filename() string {
	s := d.Title
	switch {
	case d.Date != "":
		s += " " + d.Date
	case d.Period != "":
		s += " " + d.Period
	}
	return sanitizeFilename(s)
}

// sanitizeFilename lowercases, strips diacritics and keeps [a-z0-9-]
func sanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var buf []rune
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		buf = append(buf, r)
	}
	s = reNonAlnum.ReplaceAllString(string(buf), "-")
	s = reHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	if s == "" {
		s = "laporan"
	}
	return s
}
