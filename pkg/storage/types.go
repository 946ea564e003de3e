package storage

import "time"

// Row is the current ledger state for one (target, item) pair.
type Row struct {
	// Target info
	Kind       string
	TargetID   int
	TargetName string

	// Item info
	ItemID      int
	Name        string
	Quality     string
	Chance      float64
	Quest       bool
	Professions []string

	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Change captures a single change event for auditing or printing.
type Change struct {
	OccurredAt time.Time

	// Target info
	Kind     string
	TargetID int

	// Item info
	ItemID int
	Name   string

	ChangeType string // added | changed | removed
	OldChance  float64
	NewChance  float64
}

// KindStats aggregates ledger contents per page kind.
type KindStats struct {
	Kind        string
	TargetCount int
	ItemCount   int
}
