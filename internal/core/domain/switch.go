package domain

import "time"

// SwitchState is a state of the change-source state machine
type SwitchState string

const (
	SwitchStateIdle             SwitchState = "idle"
	SwitchStateSearching        SwitchState = "searching"
	SwitchStateSelecting        SwitchState = "selecting"
	SwitchStateFetchingChapters SwitchState = "fetching_chapters"
	SwitchStateCompleted        SwitchState = "completed"
	SwitchStateCancelled        SwitchState = "cancelled"
	SwitchStateFailed           SwitchState = "failed"
)

// IsTerminal returns true for completed, cancelled and failed
func (s SwitchState) IsTerminal() bool {
	switch s {
	case SwitchStateCompleted, SwitchStateCancelled, SwitchStateFailed:
		return true
	}
	return false
}

// Cancellable returns true while a newer request may still supersede the
// operation. Once chapters are being fetched the operation runs to the end.
func (s SwitchState) Cancellable() bool {
	switch s {
	case SwitchStateIdle, SwitchStateSearching, SwitchStateSelecting:
		return true
	}
	return false
}

// SwitchKind tells how the replacement candidate is chosen
type SwitchKind string

const (
	SwitchKindManual SwitchKind = "manual" // Candidate chosen by the user
	SwitchKindAuto   SwitchKind = "auto"   // Candidate chosen by probing every source
)

// SwitchOutcome is the terminal result of one switch operation.
// Book and Chapters are set together on completion and only then.
type SwitchOutcome struct {
	OperationID      string       `json:"operation_id"`
	BookID           string       `json:"book_id"`
	Kind             SwitchKind   `json:"kind"`
	State            SwitchState  `json:"state"`
	Book             *Book        `json:"book,omitempty"`
	Chapters         *ChapterList `json:"chapters,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	SuggestedChapter int          `json:"suggested_chapter"`
	Err              error        `json:"-"`
}

// SwitchEvent is emitted on every state transition of an operation
type SwitchEvent struct {
	OperationID string      `json:"operation_id"`
	BookID      string      `json:"book_id"`
	State       SwitchState `json:"state"`
	At          time.Time   `json:"at"`
}
