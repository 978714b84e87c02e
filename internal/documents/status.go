package documents

import "fmt"

// Status is the document lifecycle state. It forms a closed state machine:
//
//	uploading -> analyzing -> complete
//	analyzing -> error
//	error     -> analyzing (manual reprocess)
type Status string

const (
	StatusUploading Status = "uploading"
	StatusAnalyzing Status = "analyzing"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// ParseStatusValue validates a raw string as a Status.
func ParseStatusValue(s string) (Status, error) {
	switch Status(s) {
	case StatusUploading, StatusAnalyzing, StatusComplete, StatusError:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
}

// CanTransition reports whether the edge s -> to is legal.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusUploading:
		return to == StatusAnalyzing
	case StatusAnalyzing:
		return to == StatusComplete || to == StatusError
	case StatusError:
		return to == StatusAnalyzing
	case StatusComplete:
		return false
	default:
		return false
	}
}
