package models

import "time"

// SignalType names the real-time notifications that make cached availability stale.
type SignalType string

const (
	SignalSwapRequest  SignalType = "swapRequest"
	SignalSwapResponse SignalType = "swapResponse"
	SignalFeedRefresh  SignalType = "feedRefresh"
	SignalManual       SignalType = "manual"
)

// StaleSignal tells the refresh pipeline which users need their cache dropped.
// An empty UserIDs slice means every user.
type StaleSignal struct {
	Type       SignalType `json:"type"`
	Status     string     `json:"status,omitempty"`
	UserIDs    []string   `json:"user_ids,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}
