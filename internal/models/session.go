package models

import "time"

type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

// Session is the server-side record behind an issued token pair. It lives in
// the session store under its own TTL; expiry there is authoritative, the
// struct carries no expiry field of its own.
type Session struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	DeviceFingerprint string      `json:"device_fingerprint,omitempty"`
	DeviceClass       DeviceClass `json:"device_class,omitempty"`
	IPAddress         string      `json:"ip_address,omitempty"`
	UserAgent         string      `json:"user_agent,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	LastSeenAt        time.Time   `json:"last_seen_at"`
}
