package diag

// Severity orders diagnostics. A run fails once anything reaches SevError.
type Severity uint8

const (
	SevInfo Severity = iota // never affects the exit status
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "INFO",
	SevWarning: "WARNING",
	SevError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}
