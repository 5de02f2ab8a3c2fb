package domain

import (
	"strings"
	"time"
)

// House is a persisted point of interest on the lights map. ID is empty for
// a draft house held only in client state pending confirmation.
type House struct {
	ID                string
	Address           string
	NormalizedAddress string
	Location          Location
	CreatedAt         time.Time
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the location carries usable coordinates. (0,0) is in
// the Gulf of Guinea, not Truckee; it only ever shows up as a zero value.
func (l Location) Valid() bool {
	if l.Lat == 0 && l.Lng == 0 {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// NormalizeAddress is the de-duplication key: trimmed and case-folded.
// Idempotent by construction.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (h House) Draft() bool { return h.ID == "" }
