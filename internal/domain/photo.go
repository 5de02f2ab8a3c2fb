package domain

import "time"

// Photo is an uploaded image attached to a House. Reviewed only drives the
// moderation board's pending/approved partition; display to map users is
// never gated on it.
type Photo struct {
	ID          string
	HouseID     string
	DownloadURL string
	StoragePath string
	FileName    string
	UploadedAt  time.Time
	Reviewed    bool
}
