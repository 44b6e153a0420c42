package services

import (
	"fmt"

	"github.com/saluran/fieldreport-server/internal/derived"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/options"
)

// Tree to row conversion. Option fields are written as their resolved text,
// so neither the custom marker nor an empty override reaches the store.

func reportRow(r models.Report) (*models.ReportRow, error) {
	date, err := models.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	return &models.ReportRow{
		ID:      r.ID,
		Date:    date,
		Period:  r.Period,
		Variant: r.Variant,
		Owner:   r.Owner,
	}, nil
}

func siteRow(reportID string, position int, s models.Site) (*models.SiteRow, error) {
	activityDate, err := models.ParseDate(s.ActivityDate)
	if err != nil {
		return nil, err
	}
	coordinators := s.Coordinators
	if coordinators == nil {
		coordinators = []string{}
	}
	personnel := s.Personnel
	if personnel == nil {
		personnel = map[string]int{}
	}
	return &models.SiteRow{
		ID:             s.ID,
		ReportID:       reportID,
		Position:       position,
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
		Coordinators:   coordinators,
		Personnel:      personnel,
		Notes:          s.Notes,
		ActivityDate:   activityDate,
	}, nil
}

func activityRow(siteID string, position int, a models.ActivityDetail) (*models.ActivityRow, error) {
	row := &models.ActivityRow{
		ID:          a.ID,
		SiteID:      siteID,
		Position:    position,
		Channel:     string(a.Channel),
		Sediment:    a.Sediment.Resolve(),
		Description: a.Description,
	}
	targets := map[models.Slot]*[]string{
		models.SlotBefore:   &row.PhotosBefore,
		models.SlotProgress: &row.PhotosProgress,
		models.SlotAfter:    &row.PhotosAfter,
		models.SlotSketch:   &row.PhotosSketch,
	}
	for slot, dst := range targets {
		urls, err := models.URLs(a.Photos.Get(slot))
		if err != nil {
			return nil, fmt.Errorf("%s photos: %w", slot, err)
		}
		*dst = urls
	}
	return row, nil
}

func materialRow(activityID string, position int, m models.Material) *models.MaterialRow {
	return &models.MaterialRow{
		ID:         m.ID,
		ActivityID: activityID,
		Position:   position,
		Type:       m.Type.Resolve(),
		Quantity:   m.Quantity,
		Unit:       m.Unit,
		Notes:      m.Notes,
	}
}

func equipmentRow(siteID string, position int, e models.Equipment) *models.EquipmentRow {
	return &models.EquipmentRow{
		SiteID:   siteID,
		Position: position,
		Name:     e.Name.Resolve(),
		Quantity: e.Quantity,
		Unit:     e.Unit,
	}
}

func heavyEquipmentRow(siteID string, position int, h models.HeavyEquipmentUsage) *models.HeavyEquipmentRow {
	return &models.HeavyEquipmentRow{
		SiteID:          siteID,
		Position:        position,
		Type:            h.Type.Resolve(),
		Quantity:        h.Quantity,
		DieselAmount:    h.Diesel.Amount,
		DieselUnit:      h.Diesel.Unit,
		PetrolAmount:    h.Petrol.Amount,
		PetrolUnit:      h.Petrol.Unit,
		LubricantAmount: h.Lubricant.Amount,
		LubricantUnit:   h.Lubricant.Unit,
		Notes:           h.Notes,
	}
}

// Row to tree conversion. Loaded nodes use their store id as key; stored
// option text is classified against the field's vocabulary.

func reportFromRow(row *models.ReportRow) models.Report {
	return models.Report{
		Key:     row.ID,
		ID:      row.ID,
		Date:    models.FormatDate(row.Date),
		Period:  row.Period,
		Variant: row.Variant,
		Owner:   row.Owner,
	}
}

func siteFromRow(row models.SiteRow) models.Site {
	s := models.Site{
		Key:            row.ID,
		ID:             row.ID,
		Street:         row.Street,
		District:       row.District,
		SubDistrict:    row.SubDistrict,
		Length:         row.Length,
		Width:          row.Width,
		SedimentHeight: row.SedimentHeight,
		Volume:         row.Volume,
		PlannedLength:  row.PlannedLength,
		RealizedLength: row.RealizedLength,
		PlannedVolume:  row.PlannedVolume,
		RealizedVolume: row.RealizedVolume,
		RemainingDays:  row.RemainingDays,
		Coordinators:   row.Coordinators,
		Personnel:      row.Personnel,
		Notes:          row.Notes,
		ActivityDate:   models.FormatDate(row.ActivityDate),
	}
	if s.Coordinators == nil {
		s.Coordinators = []string{}
	}
	if s.Personnel == nil {
		s.Personnel = map[string]int{}
	}
	return derived.Adopt(s)
}

func activityFromRow(row models.ActivityRow) models.ActivityDetail {
	channel, err := models.ParseChannelType(row.Channel)
	if err != nil {
		channel = models.ChannelUnset
	}
	return models.ActivityDetail{
		Key:         row.ID,
		ID:          row.ID,
		Channel:     channel,
		Sediment:    options.Sediment.Classify(row.Sediment),
		Description: row.Description,
		Photos: models.PhotoSet{
			Before:   models.StoredPhotos(row.PhotosBefore),
			Progress: models.StoredPhotos(row.PhotosProgress),
			After:    models.StoredPhotos(row.PhotosAfter),
			Sketch:   models.StoredPhotos(row.PhotosSketch),
		},
	}
}

func materialFromRow(row models.MaterialRow) models.Material {
	return models.Material{
		Key:      row.ID,
		ID:       row.ID,
		Type:     options.Material.Classify(row.Type),
		Quantity: row.Quantity,
		Unit:     row.Unit,
		Notes:    row.Notes,
	}
}

func equipmentFromRow(row models.EquipmentRow) models.Equipment {
	return models.Equipment{
		Key:      row.ID,
		ID:       row.ID,
		Name:     options.Equipment.Classify(row.Name),
		Quantity: row.Quantity,
		Unit:     row.Unit,
	}
}

func heavyEquipmentFromRow(row models.HeavyEquipmentRow) models.HeavyEquipmentUsage {
	return models.HeavyEquipmentUsage{
		Key:       row.ID,
		ID:        row.ID,
		Type:      options.HeavyEquipment.Classify(row.Type),
		Quantity:  row.Quantity,
		Diesel:    models.Fuel{Amount: row.DieselAmount, Unit: row.DieselUnit},
		Petrol:    models.Fuel{Amount: row.PetrolAmount, Unit: row.PetrolUnit},
		Lubricant: models.Fuel{Amount: row.LubricantAmount, Unit: row.LubricantUnit},
		Notes:     row.Notes,
	}
}
