package models

import "time"

// ReportRow is one row of the reports table
type ReportRow struct {
	ID        string     `json:"id" db:"id"`
	Date      *time.Time `json:"date" db:"report_date"`
	Period    string     `json:"period" db:"period"`
	Variant   Variant    `json:"variant" db:"variant"`
	Owner     string     `json:"owner" db:"owner"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// SiteRow is one row of the report_sites table
type SiteRow struct {
	ID             string         `db:"id"`
	ReportID       string         `db:"report_id"`
	Position       int            `db:"position"`
	Street         string         `db:"street"`
	District       string         `db:"district"`
	SubDistrict    string         `db:"sub_district"`
	Length         string         `db:"length"`
	Width          string         `db:"width"`
	SedimentHeight string         `db:"sediment_height"`
	Volume         string         `db:"volume"`
	PlannedLength  string         `db:"planned_length"`
	RealizedLength string         `db:"realized_length"`
	PlannedVolume  string         `db:"planned_volume"`
	RealizedVolume string         `db:"realized_volume"`
	RemainingDays  *int           `db:"remaining_days"`
	Coordinators   []string       `db:"coordinators"`
	Personnel      map[string]int `db:"personnel"`
	Notes          string         `db:"notes"`
	ActivityDate   *time.Time     `db:"activity_date"`
}

// ActivityRow is one row of the activity_details table
type ActivityRow struct {
	ID             string   `db:"id"`
	SiteID         string   `db:"site_id"`
	Position       int      `db:"position"`
	Channel        string   `db:"channel_type"`
	Sediment       string   `db:"sediment_type"`
	Description    string   `db:"description"`
	PhotosBefore   []string `db:"photos_before"`
	PhotosProgress []string `db:"photos_progress"`
	PhotosAfter    []string `db:"photos_after"`
	PhotosSketch   []string `db:"photos_sketch"`
}

// MaterialRow is one row of the materials table. Quantity stays text to keep
// the operator's formatting.
type MaterialRow struct {
	ID         string `db:"id"`
	ActivityID string `db:"activity_id"`
	Position   int    `db:"position"`
	Type       string `db:"material_type"`
	Quantity   string `db:"quantity"`
	Unit       string `db:"unit"`
	Notes      string `db:"notes"`
}

// EquipmentRow is one row of the equipment table
type EquipmentRow struct {
	ID       string `db:"id"`
	SiteID   string `db:"site_id"`
	Position int    `db:"position"`
	Name     string `db:"name"`
	Quantity int    `db:"quantity"`
	Unit     string `db:"unit"`
}

// HeavyEquipmentRow is one row of the heavy_equipment_usage table
type HeavyEquipmentRow struct {
	ID              string `db:"id"`
	SiteID          string `db:"site_id"`
	Position        int    `db:"position"`
	Type            string `db:"equipment_type"`
	Quantity        string `db:"quantity"`
	DieselAmount    string `db:"diesel_amount"`
	DieselUnit      string `db:"diesel_unit"`
	PetrolAmount    string `db:"petrol_amount"`
	PetrolUnit      string `db:"petrol_unit"`
	LubricantAmount string `db:"lubricant_amount"`
	LubricantUnit   string `db:"lubricant_unit"`
	Notes           string `db:"notes"`
}

// ReportSummary is a list-view entry
type ReportSummary struct {
	ID        string     `json:"id"`
	Date      *time.Time `json:"date"`
	Period    string     `json:"period"`
	Variant   Variant    `json:"variant"`
	SiteCount int        `json:"site_count"`
	Streets   []string   `json:"streets"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ActivityLog is an audit entry for a save or delete of a report
type ActivityLog struct {
	ID        string    `json:"id" db:"id"`
	ReportID  string    `json:"report_id" db:"report_id"`
	Action    string    `json:"action" db:"action"`
	Actor     string    `json:"actor" db:"actor"`
	Summary   string    `json:"summary,omitempty" db:"summary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActivityLogEntry is the input for recording an activity
type ActivityLogEntry struct {
	ReportID string `json:"report_id" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Actor    string `json:"actor"`
	Summary  string `json:"summary,omitempty"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
	Storage  string `json:"storage,omitempty"`
}
