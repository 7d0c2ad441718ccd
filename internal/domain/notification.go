package domain

import "time"

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type Field struct {
	Label string
	Value string
}

// NotificationIntent is a classified, not yet rendered notification.
type NotificationIntent struct {
	Severity    Severity
	Title       string
	Fields      []Field
	LogsExcerpt []string
	Container   ContainerRef
	Action      Action
	Time        time.Time
}

// Field returns the value of the first field with the given label.
func (n NotificationIntent) Field(label string) (string, bool) {
	for _, f := range n.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}
