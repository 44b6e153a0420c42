package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/models"
	"github.com/saluran/fieldreport-server/internal/tree"
	"github.com/saluran/fieldreport-server/internal/variant"
	"go.uber.org/zap"
)

type fakeActivity struct {
	entries []models.ActivityLogEntry
	err     error
}

func (f *fakeActivity) Log(_ context.Context, entry *models.ActivityLogEntry) error {
	f.entries = append(f.entries, *entry)
	return f.err
}

func mustSet(t *testing.T, r models.Report, path string, value any) models.Report {
	t.Helper()
	next, err := tree.SetField(r, path, value)
	if err != nil {
		t.Fatalf("SetField(%s): %v", path, err)
	}
	return next
}

func newTestService(st Store, atomic bool) (*ReportService, *fakeActivity) {
	activity := &fakeActivity{}
	svc := NewReportService(st, nil, ReportServiceOptions{Atomic: atomic, Activity: activity}, zap.NewNop().Sugar())
	return svc, activity
}

// dailyReport builds the daily report used by the round-trip tests
func dailyReport(t *testing.T) models.Report {
	r := tree.NewReport(models.VariantDaily, "user-1")
	site := r.Sites[0]
	sp := tree.SitePath(site.Key)
	detail := tree.ActivityPath(site.Key, site.Activities[0].Key)

	r = mustSet(t, r, "date", "2024-05-02")
	r = mustSet(t, r, tree.Join(sp, "street"), "Jl. Mawar")
	r = mustSet(t, r, tree.Join(sp, "district"), "Tebet")
	r = mustSet(t, r, tree.Join(sp, "length"), "10")
	r = mustSet(t, r, tree.Join(sp, "width"), "2")
	r = mustSet(t, r, tree.Join(sp, "sediment_height"), "1")
	r = mustSet(t, r, tree.Join(sp, "coordinators"), []any{"Budi", "Ani"})
	r = mustSet(t, r, tree.Join(sp, "personnel.pekerja"), 6.0)
	r = mustSet(t, r, tree.Join(detail, "channel"), "terbuka")
	r = mustSet(t, r, tree.Join(detail, "sediment"), "Lumpur")

	mat := tree.Join(detail, tree.CollMaterials, site.Activities[0].Materials[0].Key)
	r = mustSet(t, r, tree.Join(mat, "type"), "Semen")
	r = mustSet(t, r, tree.Join(mat, "quantity"), "3")

	r, key, err := tree.AddChild(r, tree.Join(detail, tree.CollMaterials))
	if err != nil {
		t.Fatal(err)
	}
	custom := tree.Join(detail, tree.CollMaterials, key)
	r = mustSet(t, r, tree.Join(custom, "type"), "Lainnya")
	r = mustSet(t, r, tree.Join(custom, "type_text"), "Batu Split XL")
	r = mustSet(t, r, tree.Join(custom, "quantity"), "1,5")
	r = mustSet(t, r, tree.Join(custom, "unit"), "m³")

	eq := tree.Join(sp, tree.CollEquipment, site.Equipment[0].Key)
	r = mustSet(t, r, tree.Join(eq, "name"), "Cangkul")
	r = mustSet(t, r, tree.Join(eq, "quantity"), "4")
	r = mustSet(t, r, tree.Join(eq, "unit"), "Buah")

	he := tree.Join(sp, tree.CollHeavyEquipment, site.HeavyEquipment[0].Key)
	r = mustSet(t, r, tree.Join(he, "type"), "Excavator")
	r = mustSet(t, r, tree.Join(he, "quantity"), "1")
	r = mustSet(t, r, tree.Join(he, "diesel_amount"), "20")
	r = mustSet(t, r, tree.Join(he, "diesel_unit"), "Liter")
	return r
}

func TestSaveAndLoadDailyReport(t *testing.T) {
	st := newMemStore()
	svc, activity := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("report id not assigned")
	}
	if got := st.sites[saved.Sites[0].ID].Volume; got != "20.00" {
		t.Fatalf("persisted volume = %q, want 20.00", got)
	}
	if len(activity.entries) != 1 || activity.entries[0].Action != ActionCreated {
		t.Fatalf("expected one created entry, got %+v", activity.entries)
	}

	loaded, err := svc.Load(ctx, saved.ID, "user-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Date != "2024-05-02" || loaded.Variant != models.VariantDaily || loaded.Owner != "user-1" {
		t.Fatalf("report fields mismatch: %+v", loaded)
	}

	site := loaded.Sites[0]
	if site.Volume != "20.00" || site.VolumeAuto != "20.00" {
		t.Fatalf("volume = %q (auto %q), want 20.00", site.Volume, site.VolumeAuto)
	}
	if site.Street != "Jl. Mawar" || site.District != "Tebet" || site.Length != "10" || site.Width != "2" || site.SedimentHeight != "1" {
		t.Fatalf("site fields mismatch: %+v", site)
	}
	if len(site.Coordinators) != 2 || site.Coordinators[0] != "Ani" || site.Personnel["pekerja"] != 6 {
		t.Fatalf("coordinators/personnel mismatch: %v %v", site.Coordinators, site.Personnel)
	}

	a := site.Activities[0]
	if a.Channel != models.ChannelOpen || !a.Sediment.IsSelected() || a.Sediment.Resolve() != "Lumpur" {
		t.Fatalf("activity fields mismatch: %+v", a)
	}
	if len(a.Materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(a.Materials))
	}
	semen, custom := a.Materials[0], a.Materials[1]
	if !semen.Type.IsSelected() || semen.Type.Resolve() != "Semen" || semen.Unit != "Sak" || semen.Quantity != "3" {
		t.Fatalf("in-vocabulary material mismatch: %+v", semen)
	}
	if !custom.Type.IsOverride() || custom.Type.Resolve() != "Batu Split XL" || custom.Quantity != "1,5" {
		t.Fatalf("custom material mismatch: %+v", custom)
	}

	if e := site.Equipment[0]; e.Name.Resolve() != "Cangkul" || e.Quantity != 4 || e.Unit != "Buah" {
		t.Fatalf("equipment mismatch: %+v", e)
	}
	if h := site.HeavyEquipment[0]; h.Type.Resolve() != "Excavator" || h.Diesel.Amount != "20" || h.Diesel.Unit != "Liter" {
		t.Fatalf("heavy equipment mismatch: %+v", h)
	}
	if site.Key != site.ID || a.Key != a.ID {
		t.Fatalf("loaded nodes should be keyed by their store id")
	}
}

func TestSaveAgainUpdatesInPlace(t *testing.T) {
	st := newMemStore()
	svc, activity := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	siteID := saved.Sites[0].ID

	saved = mustSet(t, saved, tree.Join(tree.SitePath(saved.Sites[0].Key), "notes"), "selesai")
	again, err := svc.Save(ctx, saved, nil, "user-1")
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if again.ID != saved.ID || again.Sites[0].ID != siteID {
		t.Fatalf("ids changed on resave")
	}
	if len(st.reports) != 1 || len(st.sites) != 1 || len(st.materials) != 2 {
		t.Fatalf("resave duplicated rows: %d reports %d sites %d materials", len(st.reports), len(st.sites), len(st.materials))
	}
	if st.sites[siteID].Notes != "selesai" {
		t.Fatalf("notes not updated")
	}
	if activity.entries[1].Action != ActionUpdated {
		t.Fatalf("expected updated entry, got %s", activity.entries[1].Action)
	}
}

func TestVariantSwitchDropsHeavyEquipment(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(st.heavy) != 1 || len(st.equipment) != 1 {
		t.Fatalf("expected one heavy equipment and one equipment row")
	}

	tertiary := mustSet(t, saved, "variant", "tertiary")
	saved, err = svc.Save(ctx, tertiary, nil, "user-1")
	if err != nil {
		t.Fatalf("Save tertiary: %v", err)
	}
	if len(st.heavy) != 0 {
		t.Fatalf("heavy equipment rows should be deleted, %d left", len(st.heavy))
	}
	if len(st.equipment) != 1 {
		t.Fatalf("equipment rows should be untouched, got %d", len(st.equipment))
	}
	site := st.sites[saved.Sites[0].ID]
	if site.Length != "" || site.Volume != "" {
		t.Fatalf("measurements should be cleared for tertiary: %+v", site)
	}
	if _, ok := site.Personnel["pekerja"]; !ok {
		t.Fatalf("shared personnel role dropped")
	}
}

func TestSaveValidation(t *testing.T) {
	svc, _ := newTestService(newMemStore(), false)
	ctx := context.Background()

	noStreet := tree.NewReport(models.VariantDaily, "")
	noStreet = mustSet(t, noStreet, "date", "2024-05-02")
	if _, err := svc.Save(ctx, noStreet, nil, ""); !errors.Is(err, variant.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	broken := dailyReport(t)
	broken.Sites[0].Activities = nil
	if _, err := svc.Save(ctx, broken, nil, ""); !errors.Is(err, tree.ErrMinCardinality) {
		t.Fatalf("expected ErrMinCardinality, got %v", err)
	}

	unknown := dailyReport(t)
	unknown.Variant = "weekly"
	if _, err := svc.Save(ctx, unknown, nil, ""); !errors.Is(err, tree.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestSaveRejectsPendingPhotosWithoutUploader(t *testing.T) {
	svc, _ := newTestService(newMemStore(), false)
	r := dailyReport(t)
	slot := tree.SlotPath(r.Sites[0].Key, r.Sites[0].Activities[0].Key, "before")
	r, err := tree.AttachPhoto(r, slot, models.PendingPhoto(models.Attachment{Handle: "h", Filename: "a.jpg"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Save(context.Background(), r, nil, ""); err == nil {
		t.Fatalf("pending photos must not be persisted")
	}
}

type memUploader struct{}

func (memUploader) Upload(_ context.Context, objectPath, _ string, _ io.Reader, _ int64) (string, error) {
	return "https://cdn.test/" + objectPath, nil
}

type memBlobs map[string][]byte

func (b memBlobs) Blob(_ context.Context, handle string) ([]byte, error) {
	if data, ok := b[handle]; ok {
		return data, nil
	}
	return nil, media.ErrMissingBlob
}

func TestSaveUploadsPhotos(t *testing.T) {
	st := newMemStore()
	uploads := media.NewCoordinator(memUploader{}, zap.NewNop().Sugar())
	svc := NewReportService(st, uploads, ReportServiceOptions{}, zap.NewNop().Sugar())

	r := dailyReport(t)
	site, detail := r.Sites[0], r.Sites[0].Activities[0]
	slot := tree.SlotPath(site.Key, detail.Key, "after")
	r, err := tree.AttachPhoto(r, slot, models.PendingPhoto(models.Attachment{Handle: "h1", Filename: "sesudah.jpg"}))
	if err != nil {
		t.Fatal(err)
	}

	saved, err := svc.Save(context.Background(), r, memBlobs{"h1": []byte("jpeg")}, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	row := st.activities[saved.Sites[0].Activities[0].ID]
	want := "https://cdn.test/" + r.Key + "/" + site.Key + "/" + detail.Key + "/after/sesudah-h1.jpg"
	if len(row.PhotosAfter) != 1 || row.PhotosAfter[0] != want {
		t.Fatalf("photos_after = %v, want [%s]", row.PhotosAfter, want)
	}
	if saved.Sites[0].Activities[0].Photos.After[0].IsPending() {
		t.Fatalf("saved tree still holds a pending photo")
	}
}

func TestAtomicSaveRollsBack(t *testing.T) {
	st := &txStore{memStore: newMemStore()}
	st.failOn["insert:material"] = errors.New("disk full")
	svc, _ := newTestService(st, true)

	r := dailyReport(t)
	out, err := svc.Save(context.Background(), r, nil, "user-1")
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if st.rollbacks != 1 {
		t.Fatalf("expected a rollback")
	}
	if len(st.reports)+len(st.sites)+len(st.activities) != 0 {
		t.Fatalf("atomic save left rows behind")
	}
	if out.ID != "" {
		t.Fatalf("rolled back save should not report an id")
	}
}

func TestOwnership(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Load(ctx, saved.ID, "user-2"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("other owner should not see the report, got %v", err)
	}
	if _, err := svc.Save(ctx, saved, nil, "user-2"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("other owner should not overwrite the report, got %v", err)
	}
	if err := svc.Delete(ctx, saved.ID, "user-2"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("other owner should not delete the report, got %v", err)
	}
	if err := svc.Authorize(ctx, saved.ID, "user-2"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("Authorize for another owner = %v, want ErrReportNotFound", err)
	}
	if err := svc.Authorize(ctx, saved.ID, "user-1"); err != nil {
		t.Fatalf("Authorize for the owner: %v", err)
	}
}

func TestDeleteReport(t *testing.T) {
	st := newMemStore()
	svc, activity := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Delete(ctx, saved.ID, "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(st.reports)+len(st.sites)+len(st.activities)+len(st.materials)+len(st.equipment)+len(st.heavy) != 0 {
		t.Fatalf("rows left after delete")
	}
	if last := activity.entries[len(activity.entries)-1]; last.Action != ActionDeleted {
		t.Fatalf("expected deleted entry, got %s", last.Action)
	}
	if _, err := svc.Load(ctx, saved.ID, "user-1"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound after delete, got %v", err)
	}
}

func TestLoadFailureReturnsNoTree(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st, false)
	ctx := context.Background()

	saved, err := svc.Save(ctx, dailyReport(t), nil, "user-1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.failOn["select:site"] = errors.New("timeout")

	r, err := svc.Load(ctx, saved.ID, "user-1")
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Level != LevelSite {
		t.Fatalf("expected site StoreError, got %v", err)
	}
	if r.ID != "" || len(r.Sites) != 0 {
		t.Fatalf("partial tree returned on load failure")
	}
}
