package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	FileEncoded
	FileDegraded
	FileWritten
	FileRenamed
	FileUnchanged
	FileSkipped
	FileFailed
	VerifyStarted
	VerifyOK
	VerifyFailed
	PatchApplied
	PatchRejected
)

var typeNames = [...]string{
	ScanStarted:   "ScanStarted",
	ScanComplete:  "ScanComplete",
	FileEncoded:   "FileEncoded",
	FileDegraded:  "FileDegraded",
	FileWritten:   "FileWritten",
	FileRenamed:   "FileRenamed",
	FileUnchanged: "FileUnchanged",
	FileSkipped:   "FileSkipped",
	FileFailed:    "FileFailed",
	VerifyStarted: "VerifyStarted",
	VerifyOK:      "VerifyOK",
	VerifyFailed:  "VerifyFailed",
	PatchApplied:  "PatchApplied",
	PatchRejected: "PatchRejected",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from a merge, split, verify or
// patch run.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // bundle-relative path
	Dest      string // final relative path when renamed
	Size      int64  // content bytes
	Total     int64  // total files (ScanComplete)
	TotalSize int64  // total bytes (ScanComplete)
	Message   string
	Error     error
}

// Emit sends e on ch without blocking. A nil channel drops the event.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
