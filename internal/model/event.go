package model

import "time"

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// ChangeEvent announces a registry write to stream subscribers.
type ChangeEvent struct {
	Type        string    `json:"type"`
	FundAddress string    `json:"fundAddress"`
	Revision    int64     `json:"revision"`
	At          time.Time `json:"at"`
}
