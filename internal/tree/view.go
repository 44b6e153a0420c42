package tree

import (
	"strconv"

	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/options"
	"github.com/saluran/fieldreport-server/internal/variant"
)

// View is the form projection of a report: option fields are shown as
// dropdown selection plus custom text, photos as URL or pending filename,
// and suppressed parts of the variant are omitted.
type View struct {
	Key     string         `json:"key"`
	ID      string         `json:"id,omitempty"`
	Date    string         `json:"date"`
	Period  string         `json:"period"`
	Variant models.Variant `json:"variant"`
	Slots   []models.Slot  `json:"slots"`
	Roles   []string       `json:"personnel_roles"`
	Sites   []SiteView     `json:"sites"`
}

type SiteView struct {
	Key            string               `json:"key"`
	Label          string               `json:"label"`
	Street         string               `json:"street"`
	District       string               `json:"district"`
	SubDistrict    string               `json:"sub_district"`
	Length         string               `json:"length,omitempty"`
	Width          string               `json:"width,omitempty"`
	SedimentHeight string               `json:"sediment_height,omitempty"`
	Volume         string               `json:"volume,omitempty"`
	PlannedLength  string               `json:"planned_length,omitempty"`
	RealizedLength string               `json:"realized_length,omitempty"`
	PlannedVolume  string               `json:"planned_volume,omitempty"`
	RealizedVolume string               `json:"realized_volume,omitempty"`
	RemainingDays  *int                 `json:"remaining_days,omitempty"`
	Coordinators   []string             `json:"coordinators"`
	Personnel      map[string]int       `json:"personnel"`
	Notes          string               `json:"notes"`
	ActivityDate   string               `json:"activity_date"`
	Activities     []ActivityView       `json:"activities"`
	Equipment      []EquipmentView      `json:"equipment"`
	HeavyEquipment []HeavyEquipmentView `json:"heavy_equipment,omitempty"`
}

type ActivityView struct {
	Key         string                      `json:"key"`
	Channel     models.ChannelType          `json:"channel"`
	Sediment    options.Display             `json:"sediment"`
	Description string                      `json:"description"`
	Photos      map[models.Slot][]PhotoView `json:"photos"`
	Materials   []MaterialView              `json:"materials"`
}

type PhotoView struct {
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Pending  bool   `json:"pending"`
}

type MaterialView struct {
	Key      string          `json:"key"`
	Type     options.Display `json:"type"`
	Quantity string          `json:"quantity"`
	Unit     string          `json:"unit"`
	Notes    string          `json:"notes"`
}

type EquipmentView struct {
	Key      string          `json:"key"`
	Name     options.Display `json:"name"`
	Quantity int             `json:"quantity"`
	Unit     string          `json:"unit"`
}

type HeavyEquipmentView struct {
	Key       string          `json:"key"`
	Type      options.Display `json:"type"`
	Quantity  string          `json:"quantity"`
	Diesel    models.Fuel     `json:"diesel"`
	Petrol    models.Fuel     `json:"petrol"`
	Lubricant models.Fuel     `json:"lubricant"`
	Notes     string          `json:"notes"`
}

// Present builds the form projection of a report
func Present(r models.Report) View {
	p := variant.For(r.Variant)
	r = p.Normalize(r)
	v := View{
		Key:     r.Key,
		ID:      r.ID,
		Date:    r.Date,
		Period:  r.Period,
		Variant: r.Variant,
		Slots:   p.ActiveSlots(),
		Roles:   p.PersonnelRoles,
		Sites:   make([]SiteView, 0, len(r.Sites)),
	}
	for i, s := range r.Sites {
		sv := SiteView{
			Key:            s.Key,
			Label:          siteLabel(i),
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
			RemainingDays:  s.RemainingDays,
			Coordinators:   s.Coordinators,
			Personnel:      s.Personnel,
			Notes:          s.Notes,
			ActivityDate:   s.ActivityDate,
		}
		for _, a := range s.Activities {
			av := ActivityView{
				Key:         a.Key,
				Channel:     a.Channel,
				Sediment:    options.Present(a.Sediment),
				Description: a.Description,
				Photos:      make(map[models.Slot][]PhotoView, len(v.Slots)),
			}
			for _, slot := range v.Slots {
				av.Photos[slot] = presentPhotos(a.Photos.Get(slot))
			}
			for _, m := range a.Materials {
				av.Materials = append(av.Materials, MaterialView{
					Key:      m.Key,
					Type:     options.Present(m.Type),
					Quantity: m.Quantity,
					Unit:     m.Unit,
					Notes:    m.Notes,
				})
			}
			sv.Activities = append(sv.Activities, av)
		}
		for _, e := range s.Equipment {
			sv.Equipment = append(sv.Equipment, EquipmentView{
				Key:      e.Key,
				Name:     options.Present(e.Name),
				Quantity: e.Quantity,
				Unit:     e.Unit,
			})
		}
		for _, h := range s.HeavyEquipment {
			sv.HeavyEquipment = append(sv.HeavyEquipment, HeavyEquipmentView{
				Key:       h.Key,
				Type:      options.Present(h.Type),
				Quantity:  h.Quantity,
				Diesel:    h.Diesel,
				Petrol:    h.Petrol,
				Lubricant: h.Lubricant,
				Notes:     h.Notes,
			})
		}
		v.Sites = append(v.Sites, sv)
	}
	return v
}

func presentPhotos(photos []models.Photo) []PhotoView {
	out := make([]PhotoView, 0, len(photos))
	for _, p := range photos {
		if a, ok := p.Attachment(); ok {
			out = append(out, PhotoView{Filename: a.Filename, Pending: true})
			continue
		}
		u, _ := p.URL()
		out = append(out, PhotoView{URL: u})
	}
	return out
}

func siteLabel(i int) string {
	return "Kegiatan " + strconv.Itoa(i+1)
}
