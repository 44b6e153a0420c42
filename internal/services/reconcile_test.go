package services

import (
	"context"
	"errors"
	"testing"

	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/options"
	"go.uber.org/zap"
)

type seeded struct {
	report, site, activity string
	materials              []string
}

// seed stores one report with one site, one activity and three materials
func seed(t *testing.T, st *memStore) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	var err error
	if s.report, err = st.InsertReport(ctx, &models.ReportRow{Variant: models.VariantDaily, Owner: "user-1"}); err != nil {
		t.Fatal(err)
	}
	if s.site, err = st.InsertSite(ctx, &models.SiteRow{ReportID: s.report, Street: "Jl. Melati"}); err != nil {
		t.Fatal(err)
	}
	if s.activity, err = st.InsertActivity(ctx, &models.ActivityRow{SiteID: s.site}); err != nil {
		t.Fatal(err)
	}
	for i, typ := range []string{"Semen", "Pasir", "Batu Kali"} {
		id, err := st.InsertMaterial(ctx, &models.MaterialRow{ActivityID: s.activity, Position: i, Type: typ, Quantity: "1"})
		if err != nil {
			t.Fatal(err)
		}
		s.materials = append(s.materials, id)
	}
	return s
}

func seededTree(s seeded, materials ...models.Material) models.Report {
	return models.Report{
		Key:     s.report,
		ID:      s.report,
		Date:    "2024-05-02",
		Variant: models.VariantDaily,
		Sites: []models.Site{{
			Key:    s.site,
			ID:     s.site,
			Street: "Jl. Melati",
			Activities: []models.ActivityDetail{{
				Key:       s.activity,
				ID:        s.activity,
				Materials: materials,
			}},
			Equipment:      []models.Equipment{models.NewEquipment()},
			HeavyEquipment: []models.HeavyEquipmentUsage{models.NewHeavyEquipmentUsage()},
		}},
	}
}

func TestReconcileMaterials(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)
	m1 := s.materials[0]

	r := seededTree(s,
		models.Material{Key: m1, ID: m1, Type: options.Selected("Semen"), Quantity: "5", Unit: "Sak"},
		models.Material{Key: models.NewKey(), Type: options.Selected("Besi Beton"), Quantity: "12", Unit: "Batang"},
	)

	rc := NewReconciler(zap.NewNop().Sugar())
	saved, stats, err := rc.Save(context.Background(), st, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, _ := st.MaterialIDs(context.Background(), s.activity)
	m4 := saved.Sites[0].Activities[0].Materials[1].ID
	if len(ids) != 2 || ids[0] != m1 || ids[1] != m4 {
		t.Fatalf("stored materials = %v, want [%s %s]", ids, m1, m4)
	}
	if got := st.materials[m1]; got.Quantity != "5" || got.Unit != "Sak" {
		t.Fatalf("m1 not updated: %+v", got)
	}
	for _, gone := range s.materials[1:] {
		if _, ok := st.materials[gone]; ok {
			t.Fatalf("orphan material %s not deleted", gone)
		}
	}
	if stats.Deleted != 2 {
		t.Fatalf("expected 2 deletes, got %d", stats.Deleted)
	}
	if r.Sites[0].Activities[0].Materials[1].ID != "" {
		t.Fatalf("input tree was modified")
	}
}

func TestReconcileSkipsBlankLineItems(t *testing.T) {
	st := newMemStore()
	r := models.Report{
		Key:     models.NewKey(),
		Date:    "2024-05-02",
		Variant: models.VariantDaily,
		Sites: []models.Site{{
			Key:    models.NewKey(),
			Street: "Jl. Kenanga",
			Activities: []models.ActivityDetail{{
				Key: models.NewKey(),
				Materials: []models.Material{
					models.NewMaterial(),
					{Key: models.NewKey(), Type: options.Override("Batu Split XL"), Quantity: "2"},
					{Key: models.NewKey(), Notes: "only a note"},
				},
			}},
			Equipment:      []models.Equipment{models.NewEquipment()},
			HeavyEquipment: []models.HeavyEquipmentUsage{models.NewHeavyEquipmentUsage()},
		}},
	}

	saved, _, err := NewReconciler(zap.NewNop().Sugar()).Save(context.Background(), st, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(st.materials) != 1 {
		t.Fatalf("expected 1 stored material, got %d", len(st.materials))
	}
	for _, m := range st.materials {
		if m.Type != "Batu Split XL" || m.Position != 0 {
			t.Fatalf("unexpected material row %+v", m)
		}
	}
	if len(st.equipment) != 0 || len(st.heavy) != 0 {
		t.Fatalf("blank equipment rows were inserted")
	}
	materials := saved.Sites[0].Activities[0].Materials
	if len(materials) != 3 || materials[0].ID != "" || materials[1].ID == "" || materials[2].ID != "" {
		t.Fatalf("unexpected ids on saved tree: %+v", materials)
	}
}

func TestReconcileBlankedMaterialIsDeleted(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)

	r := seededTree(s,
		models.Material{Key: s.materials[0], ID: s.materials[0], Type: options.Selected("Semen"), Quantity: "1"},
		models.Material{Key: s.materials[1], ID: s.materials[1]},
		models.Material{Key: s.materials[2], ID: s.materials[2], Type: options.Selected("Batu Kali"), Quantity: "1"},
	)
	if _, _, err := NewReconciler(zap.NewNop().Sugar()).Save(context.Background(), st, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := st.materials[s.materials[1]]; ok {
		t.Fatalf("blanked material should be deleted")
	}
	if st.materials[s.materials[2]].Position != 1 {
		t.Fatalf("positions should be contiguous over persisted rows")
	}
}

func TestReconcileDeletesOrphanSubtrees(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)
	ctx := context.Background()
	if _, err := st.InsertEquipment(ctx, &models.EquipmentRow{SiteID: s.site, Name: "Cangkul", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	// the tree keeps the report but replaces its only site with a new one
	r := models.Report{
		Key:     s.report,
		ID:      s.report,
		Date:    "2024-05-02",
		Variant: models.VariantDaily,
		Sites: []models.Site{{
			Key:            models.NewKey(),
			Street:         "Jl. Anggrek",
			Activities:     []models.ActivityDetail{models.NewActivityDetail()},
			Equipment:      []models.Equipment{models.NewEquipment()},
			HeavyEquipment: []models.HeavyEquipmentUsage{models.NewHeavyEquipmentUsage()},
		}},
	}

	saved, _, err := NewReconciler(zap.NewNop().Sugar()).Save(ctx, st, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := st.sites[s.site]; ok {
		t.Fatalf("orphan site not deleted")
	}
	if len(st.activities) != 1 || len(st.materials) != 0 || len(st.equipment) != 0 {
		t.Fatalf("orphan subtree left behind: %d activities, %d materials, %d equipment",
			len(st.activities), len(st.materials), len(st.equipment))
	}
	if saved.Sites[0].ID == "" || saved.Sites[0].Activities[0].ID == "" {
		t.Fatalf("new nodes should carry store ids")
	}
}

func TestReconcileDeletesOrphanActivities(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)

	r := seededTree(s)
	r.Sites[0].Activities = []models.ActivityDetail{models.NewActivityDetail()}

	if _, _, err := NewReconciler(zap.NewNop().Sugar()).Save(context.Background(), st, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := st.activities[s.activity]; ok {
		t.Fatalf("orphan activity not deleted")
	}
	if len(st.materials) != 0 {
		t.Fatalf("materials of the orphan activity should be deleted first")
	}
}

func TestReconcileUnknownIDIsInserted(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)

	r := seededTree(s, models.Material{Key: "k", ID: "material-999", Type: options.Selected("Pasir"), Quantity: "1"})
	saved, _, err := NewReconciler(zap.NewNop().Sugar()).Save(context.Background(), st, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := saved.Sites[0].Activities[0].Materials[0].ID
	if got == "material-999" || got == "" {
		t.Fatalf("material outside the stored id set should be inserted, got id %q", got)
	}
}

func TestReconcileStoreFailureKeepsEarlierWrites(t *testing.T) {
	st := newMemStore()
	st.failOn["insert:material"] = errors.New("connection reset")

	r := models.Report{
		Key:     models.NewKey(),
		Date:    "2024-05-02",
		Variant: models.VariantDaily,
		Sites: []models.Site{{
			Key:    models.NewKey(),
			Street: "Jl. Mawar",
			Activities: []models.ActivityDetail{{
				Key:       models.NewKey(),
				Materials: []models.Material{{Key: models.NewKey(), Type: options.Selected("Semen"), Quantity: "1"}},
			}},
		}},
	}

	saved, _, err := NewReconciler(zap.NewNop().Sugar()).Save(context.Background(), st, r)
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Level != LevelMaterial || serr.Op != "insert" {
		t.Fatalf("expected material insert StoreError, got %v", err)
	}
	if len(st.reports) != 1 || len(st.sites) != 1 || len(st.activities) != 1 {
		t.Fatalf("earlier writes should stay committed")
	}
	if saved.ID == "" || saved.Sites[0].ID == "" {
		t.Fatalf("ids assigned before the failure should be returned")
	}
}

func TestReconcilerDelete(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)
	ctx := context.Background()
	if _, err := st.InsertHeavyEquipment(ctx, &models.HeavyEquipmentRow{SiteID: s.site, Type: "Excavator"}); err != nil {
		t.Fatal(err)
	}

	stats, err := NewReconciler(zap.NewNop().Sugar()).Delete(ctx, st, s.report)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(st.reports)+len(st.sites)+len(st.activities)+len(st.materials)+len(st.heavy) != 0 {
		t.Fatalf("rows left after delete")
	}
	// report + site + activity + 3 materials + heavy equipment
	if stats.Deleted != 7 {
		t.Fatalf("Deleted = %d, want 7", stats.Deleted)
	}
}

func TestReconcileCountsReplacedEquipment(t *testing.T) {
	st := newMemStore()
	s := seed(t, st)
	ctx := context.Background()
	for _, name := range []string{"Cangkul", "Gerobak"} {
		if _, err := st.InsertEquipment(ctx, &models.EquipmentRow{SiteID: s.site, Name: name, Quantity: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := st.InsertHeavyEquipment(ctx, &models.HeavyEquipmentRow{SiteID: s.site, Type: "Excavator"}); err != nil {
		t.Fatal(err)
	}

	var materials []models.Material
	for i, id := range s.materials {
		materials = append(materials, models.Material{Key: id, ID: id, Type: options.Selected([]string{"Semen", "Pasir", "Batu Kali"}[i]), Quantity: "1"})
	}
	r := seededTree(s, materials...)
	r.Sites[0].Equipment = []models.Equipment{{Key: models.NewKey(), Name: options.Selected("Cangkul"), Quantity: 2}}

	_, stats, err := NewReconciler(zap.NewNop().Sugar()).Save(ctx, st, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	// two equipment rows and one heavy equipment row replaced
	if stats.Deleted != 3 {
		t.Fatalf("Deleted = %d, want 3", stats.Deleted)
	}
	if len(st.equipment) != 1 || len(st.heavy) != 0 {
		t.Fatalf("equipment = %d, heavy = %d after replace", len(st.equipment), len(st.heavy))
	}
}
