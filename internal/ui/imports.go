package ui

import "github.com/scbundle/scb/internal/event"

// Event is re-exported so presenters read like the engine that feeds them.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted   = event.ScanStarted
	ScanComplete  = event.ScanComplete
	FileEncoded   = event.FileEncoded
	FileDegraded  = event.FileDegraded
	FileWritten   = event.FileWritten
	FileRenamed   = event.FileRenamed
	FileUnchanged = event.FileUnchanged
	FileSkipped   = event.FileSkipped
	FileFailed    = event.FileFailed
	VerifyStarted = event.VerifyStarted
	VerifyOK      = event.VerifyOK
	VerifyFailed  = event.VerifyFailed
	PatchApplied  = event.PatchApplied
	PatchRejected = event.PatchRejected
)
