package model

import (
	"fmt"
	"time"
)

// RecordStatus is the lifecycle state of a tracked pull request.
type RecordStatus string

// The four record states. A pull request with no record is ACTIVE.
const (
	RecordStatusActive   RecordStatus = "ACTIVE"
	RecordStatusWarned   RecordStatus = "WARNED"
	RecordStatusExecuted RecordStatus = "EXECUTED"
	RecordStatusImmune   RecordStatus = "IMMUNE"
)

// Valid reports whether s is one of the four known states.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusActive, RecordStatusWarned, RecordStatusExecuted, RecordStatusImmune:
		return true
	default:
		return false
	}
}

// ParseRecordStatus converts a stored or user-supplied string into a RecordStatus.
func ParseRecordStatus(s string) (RecordStatus, error) {
	status := RecordStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown record status %q", s)
	}
	return status, nil
}

// Record is the persisted tracking state for one pull request.
type Record struct {
	RepoFullName    string
	Number          int
	Status          RecordStatus
	WarningPostedAt *time.Time // Set on the WARNED transition; cleared when reactivated.
	ExecutedAt      *time.Time
	LastCheckedAt   time.Time
}

// Key returns the unique store key ("owner/repo#number").
func (r Record) Key() string {
	return RecordKey(r.RepoFullName, r.Number)
}
