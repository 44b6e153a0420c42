package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/saluran/fieldreport-server/internal/models"
)

var errForeignKey = errors.New("violates foreign key constraint")

// memStore is an in-memory Store. Deleting a parent that still has children
// fails like a foreign key without ON DELETE CASCADE.
type memStore struct {
	mu         sync.Mutex
	seq        int
	order      map[string]int
	reports    map[string]models.ReportRow
	sites      map[string]models.SiteRow
	activities map[string]models.ActivityRow
	materials  map[string]models.MaterialRow
	equipment  map[string]models.EquipmentRow
	heavy      map[string]models.HeavyEquipmentRow

	// failOn makes the operation "op:level" return the error
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		order:      map[string]int{},
		reports:    map[string]models.ReportRow{},
		sites:      map[string]models.SiteRow{},
		activities: map[string]models.ActivityRow{},
		materials:  map[string]models.MaterialRow{},
		equipment:  map[string]models.EquipmentRow{},
		heavy:      map[string]models.HeavyEquipmentRow{},
		failOn:     map[string]error{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	id := fmt.Sprintf("%s-%d", prefix, m.seq)
	m.order[id] = m.seq
	return id
}

func (m *memStore) fail(op, level string) error {
	return m.failOn[op+":"+level]
}

func sortRows[T any](rows []T, position func(T) int, id func(T) string, order map[string]int) {
	sort.Slice(rows, func(i, j int) bool {
		pi, pj := position(rows[i]), position(rows[j])
		if pi != pj {
			return pi < pj
		}
		return order[id(rows[i])] < order[id(rows[j])]
	})
}

func (m *memStore) ReportExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reports[id]
	return ok, m.fail("select", LevelReport)
}

func (m *memStore) GetReport(_ context.Context, id string) (*models.ReportRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("select", LevelReport); err != nil {
		return nil, err
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &r, nil
}

func (m *memStore) InsertReport(_ context.Context, row *models.ReportRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", LevelReport); err != nil {
		return "", err
	}
	r := *row
	r.ID = m.nextID("report")
	m.reports[r.ID] = r
	return r.ID, nil
}

func (m *memStore) UpdateReport(_ context.Context, row *models.ReportRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update", LevelReport); err != nil {
		return err
	}
	r := *row
	r.Owner = m.reports[row.ID].Owner
	m.reports[row.ID] = r
	return nil
}

func (m *memStore) DeleteReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sites {
		if s.ReportID == id {
			return errForeignKey
		}
	}
	delete(m.reports, id)
	return nil
}

func (m *memStore) ListReports(_ context.Context, filter ReportFilter) ([]models.ReportSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReportSummary
	for _, r := range m.reports {
		if filter.Owner != "" && r.Owner != filter.Owner {
			continue
		}
		if filter.Variant != "" && r.Variant != filter.Variant {
			continue
		}
		out = append(out, models.ReportSummary{ID: r.ID, Date: r.Date, Period: r.Period, Variant: r.Variant})
	}
	return out, nil
}

func (m *memStore) SiteIDs(_ context.Context, reportID string) ([]string, error) {
	rows, err := m.ListSites(context.Background(), reportID)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, err
}

func (m *memStore) ListSites(_ context.Context, reportID string) ([]models.SiteRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("select", LevelSite); err != nil {
		return nil, err
	}
	var rows []models.SiteRow
	for _, s := range m.sites {
		if s.ReportID == reportID {
			rows = append(rows, s)
		}
	}
	sortRows(rows, func(r models.SiteRow) int { return r.Position }, func(r models.SiteRow) string { return r.ID }, m.order)
	return rows, nil
}

func (m *memStore) InsertSite(_ context.Context, row *models.SiteRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", LevelSite); err != nil {
		return "", err
	}
	if _, ok := m.reports[row.ReportID]; !ok {
		return "", errForeignKey
	}
	r := *row
	r.ID = m.nextID("site")
	m.sites[r.ID] = r
	return r.ID, nil
}

func (m *memStore) UpdateSite(_ context.Context, row *models.SiteRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update", LevelSite); err != nil {
		return err
	}
	m.sites[row.ID] = *row
	return nil
}

func (m *memStore) DeleteSites(_ context.Context, reportID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, a := range m.activities {
			if a.SiteID == id {
				return errForeignKey
			}
		}
		for _, e := range m.equipment {
			if e.SiteID == id {
				return errForeignKey
			}
		}
		for _, h := range m.heavy {
			if h.SiteID == id {
				return errForeignKey
			}
		}
	}
	for _, id := range ids {
		if m.sites[id].ReportID == reportID {
			delete(m.sites, id)
		}
	}
	return nil
}

func (m *memStore) ActivityIDs(_ context.Context, siteID string) ([]string, error) {
	rows, err := m.ListActivities(context.Background(), siteID)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, err
}

func (m *memStore) ListActivities(_ context.Context, siteID string) ([]models.ActivityRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.ActivityRow
	for _, a := range m.activities {
		if a.SiteID == siteID {
			rows = append(rows, a)
		}
	}
	sortRows(rows, func(r models.ActivityRow) int { return r.Position }, func(r models.ActivityRow) string { return r.ID }, m.order)
	return rows, nil
}

func (m *memStore) InsertActivity(_ context.Context, row *models.ActivityRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", LevelActivity); err != nil {
		return "", err
	}
	if _, ok := m.sites[row.SiteID]; !ok {
		return "", errForeignKey
	}
	r := *row
	r.ID = m.nextID("activity")
	m.activities[r.ID] = r
	return r.ID, nil
}

func (m *memStore) UpdateActivity(_ context.Context, row *models.ActivityRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[row.ID] = *row
	return nil
}

func (m *memStore) DeleteActivities(_ context.Context, siteID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, mat := range m.materials {
			if mat.ActivityID == id {
				return errForeignKey
			}
		}
	}
	for _, id := range ids {
		if m.activities[id].SiteID == siteID {
			delete(m.activities, id)
		}
	}
	return nil
}

func (m *memStore) MaterialIDs(_ context.Context, activityID string) ([]string, error) {
	rows, err := m.ListMaterials(context.Background(), activityID)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, err
}

func (m *memStore) ListMaterials(_ context.Context, activityID string) ([]models.MaterialRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.MaterialRow
	for _, mat := range m.materials {
		if mat.ActivityID == activityID {
			rows = append(rows, mat)
		}
	}
	sortRows(rows, func(r models.MaterialRow) int { return r.Position }, func(r models.MaterialRow) string { return r.ID }, m.order)
	return rows, nil
}

func (m *memStore) InsertMaterial(_ context.Context, row *models.MaterialRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", LevelMaterial); err != nil {
		return "", err
	}
	if _, ok := m.activities[row.ActivityID]; !ok {
		return "", errForeignKey
	}
	r := *row
	r.ID = m.nextID("material")
	m.materials[r.ID] = r
	return r.ID, nil
}

func (m *memStore) UpdateMaterial(_ context.Context, row *models.MaterialRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materials[row.ID] = *row
	return nil
}

func (m *memStore) DeleteMaterials(_ context.Context, activityID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if m.materials[id].ActivityID == activityID {
			delete(m.materials, id)
		}
	}
	return nil
}

func (m *memStore) ListEquipment(_ context.Context, siteID string) ([]models.EquipmentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.EquipmentRow
	for _, e := range m.equipment {
		if e.SiteID == siteID {
			rows = append(rows, e)
		}
	}
	sortRows(rows, func(r models.EquipmentRow) int { return r.Position }, func(r models.EquipmentRow) string { return r.ID }, m.order)
	return rows, nil
}

func (m *memStore) InsertEquipment(_ context.Context, row *models.EquipmentRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *row
	r.ID = m.nextID("equipment")
	m.equipment[r.ID] = r
	return r.ID, nil
}

func (m *memStore) DeleteEquipmentBySite(_ context.Context, siteID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.equipment {
		if e.SiteID == siteID {
			delete(m.equipment, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListHeavyEquipment(_ context.Context, siteID string) ([]models.HeavyEquipmentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.HeavyEquipmentRow
	for _, h := range m.heavy {
		if h.SiteID == siteID {
			rows = append(rows, h)
		}
	}
	sortRows(rows, func(r models.HeavyEquipmentRow) int { return r.Position }, func(r models.HeavyEquipmentRow) string { return r.ID }, m.order)
	return rows, nil
}

func (m *memStore) InsertHeavyEquipment(_ context.Context, row *models.HeavyEquipmentRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *row
	r.ID = m.nextID("heavy")
	m.heavy[r.ID] = r
	return r.ID, nil
}

func (m *memStore) DeleteHeavyEquipmentBySite(_ context.Context, siteID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, h := range m.heavy {
		if h.SiteID == siteID {
			delete(m.heavy, id)
			n++
		}
	}
	return n, nil
}

// txStore wraps memStore with a Transactor that snapshots and restores
type txStore struct {
	*memStore
	commits   int
	rollbacks int
}

func (t *txStore) InTx(_ context.Context, fn func(Store) error) error {
	t.mu.Lock()
	snapshot := t.snapshot()
	t.mu.Unlock()

	if err := fn(t.memStore); err != nil {
		t.mu.Lock()
		t.restore(snapshot)
		t.mu.Unlock()
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type memSnapshot struct {
	reports    map[string]models.ReportRow
	sites      map[string]models.SiteRow
	activities map[string]models.ActivityRow
	materials  map[string]models.MaterialRow
	equipment  map[string]models.EquipmentRow
	heavy      map[string]models.HeavyEquipmentRow
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) snapshot() memSnapshot {
	return memSnapshot{
		reports:    cloneMap(m.reports),
		sites:      cloneMap(m.sites),
		activities: cloneMap(m.activities),
		materials:  cloneMap(m.materials),
		equipment:  cloneMap(m.equipment),
		heavy:      cloneMap(m.heavy),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.reports = s.reports
	m.sites = s.sites
	m.activities = s.activities
	m.materials = s.materials
	m.equipment = s.equipment
	m.heavy = s.heavy
}
