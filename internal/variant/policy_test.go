package variant

import (
	"errors"
	"testing"

	"github.com/saluran/fieldreport-server/internal/models"
)

func sampleReport(v models.Variant) models.Report {
	remaining := 4
	return models.Report{
		Key:     "r1",
		Date:    "2024-05-02",
		Period:  "Mei 2024",
		Variant: v,
		Sites: []models.Site{{
			Key:            "s1",
			Street:         "Jl. Mawar",
			Length:         "10",
			Width:          "2",
			SedimentHeight: "1",
			Volume:         "20.00",
			PlannedLength:  "100",
			RemainingDays:  &remaining,
			Personnel:      map[string]int{"pekerja": 6, "mandor": 1, "sopir": 2},
			Activities: []models.ActivityDetail{{
				Key: "a1",
				Photos: models.PhotoSet{
					Before:   models.StoredPhotos([]string{"b.jpg"}),
					Progress: models.StoredPhotos([]string{"p.jpg"}),
					Sketch:   models.StoredPhotos([]string{"s.jpg"}),
				},
			}},
			HeavyEquipment: []models.HeavyEquipmentUsage{{Key: "h1", Quantity: "1"}},
		}},
	}
}

func TestNormalizeTertiary(t *testing.T) {
	in := sampleReport(models.VariantTertiary)
	out := For(models.VariantTertiary).Normalize(in)

	site := out.Sites[0]
	if site.HeavyEquipment != nil {
		t.Errorf("heavy equipment should be suppressed, got %d items", len(site.HeavyEquipment))
	}
	if site.Volume != "" || site.Length != "" {
		t.Errorf("measurements should be suppressed, got length=%q volume=%q", site.Length, site.Volume)
	}
	if site.PlannedLength != "100" || site.RemainingDays == nil {
		t.Errorf("targets should be kept for tertiary")
	}
	photos := site.Activities[0].Photos
	if len(photos.Progress) != 0 || len(photos.Sketch) != 0 {
		t.Errorf("progress and sketch slots should be empty")
	}
	if len(photos.Before) != 1 {
		t.Errorf("before slot should be kept")
	}
	if _, ok := site.Personnel["sopir"]; ok {
		t.Errorf("sopir is not a tertiary role")
	}
	if site.Personnel["mandor"] != 1 {
		t.Errorf("mandor should be kept")
	}

	// input tree is untouched
	if len(in.Sites[0].HeavyEquipment) != 1 || len(in.Sites[0].Activities[0].Photos.Sketch) != 1 {
		t.Errorf("Normalize mutated its input")
	}
}

func TestNormalizeDailyClearsTargets(t *testing.T) {
	out := For(models.VariantDaily).Normalize(sampleReport(models.VariantDaily))
	site := out.Sites[0]
	if site.PlannedLength != "" || site.RemainingDays != nil {
		t.Errorf("targets should be suppressed for daily")
	}
	if site.Volume != "20.00" || len(site.HeavyEquipment) != 1 {
		t.Errorf("daily keeps measurements and heavy equipment")
	}
}

func TestValidate(t *testing.T) {
	r := sampleReport(models.VariantDaily)
	if err := For(models.VariantDaily).Validate(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Date = ""
	if err := For(models.VariantDaily).Validate(r); !errors.Is(err, ErrMissingField) {
		t.Errorf("daily without date: got %v", err)
	}
	// monthly reports may have no date
	if err := For(models.VariantMonthly).Validate(r); err != nil {
		t.Errorf("monthly without date: got %v", err)
	}

	r.Period = ""
	if err := For(models.VariantMonthly).Validate(r); !errors.Is(err, ErrMissingField) {
		t.Errorf("monthly without period: got %v", err)
	}
}

func TestMinHeavyEquipment(t *testing.T) {
	tests := []struct {
		variant models.Variant
		want    int
	}{
		{models.VariantDaily, 1},
		{models.VariantMonthly, 1},
		{models.VariantTertiary, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			if got := For(tt.variant).MinHeavyEquipment(); got != tt.want {
				t.Errorf("MinHeavyEquipment() = %d, want %d", got, tt.want)
			}
		})
	}
}
