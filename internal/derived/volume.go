// Package derived keeps computed site fields in step with their inputs.
package derived

import (
	"math"
	"strconv"
	"strings"

	"github.com/saluran/fieldreport-server/internal/models"
)

// ParseNumber reads a form number. Comma is accepted as decimal separator;
// empty or non-numeric input is zero.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Volume returns length × width × sedimentHeight rounded to two decimals
func Volume(length, width, sedimentHeight string) string {
	v := ParseNumber(length) * ParseNumber(width) * ParseNumber(sedimentHeight)
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Recompute refreshes the site volume after a measurement change. A volume
// the operator typed by hand is left alone until the field is cleared.
func Recompute(site models.Site) models.Site {
	current := strings.TrimSpace(site.Volume)
	if current != "" && current != site.VolumeAuto {
		return site
	}
	next := Volume(site.Length, site.Width, site.SedimentHeight)
	site.Volume = next
	site.VolumeAuto = next
	return site
}

// Adopt marks a persisted volume as engine-owned when it matches the value
// computed from the persisted measurements.
func Adopt(site models.Site) models.Site {
	site.VolumeAuto = ""
	if site.Volume != "" && site.Volume == Volume(site.Length, site.Width, site.SedimentHeight) {
		site.VolumeAuto = site.Volume
	}
	return site
}
