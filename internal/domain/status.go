package domain

import "time"

// StatusKind classifies user-visible pipeline status notifications.
type StatusKind string

const (
	// StatusAcquisitionFailed indicates no frame could be captured.
	StatusAcquisitionFailed StatusKind = "acquisition_failed"
	// StatusProviderAuth indicates the vision provider rejected credentials.
	StatusProviderAuth StatusKind = "provider_auth"
	// StatusProviderQuota indicates the vision provider is out of capacity.
	StatusProviderQuota StatusKind = "provider_quota"
	// StatusProviderRate indicates the vision provider is rate limiting.
	StatusProviderRate StatusKind = "provider_rate"
	// StatusSessionError indicates session start validation failed.
	StatusSessionError StatusKind = "session_error"
	// StatusBackendLink reports duplex channel state changes.
	StatusBackendLink StatusKind = "backend_link"
)

// StatusNote is a status-only notification routed to the UI panel.
// It never carries pipeline data, only what the user should see.
type StatusNote struct {
	Kind   StatusKind `json:"kind"`
	Detail string     `json:"detail"`
	Time   time.Time  `json:"time"`
}
