package model

// FailureKind classifies why a candidate file could not be read.
type FailureKind int

const (
	// FailureMalformed means the file does not follow the class-file layout.
	FailureMalformed FailureKind = iota

	// FailureIO means the file could not be opened or read.
	FailureIO
)

// String returns the stable identifier used in reports and the database.
func (k FailureKind) String() string {
	switch k {
	case FailureMalformed:
		return "malformed_class_file"
	case FailureIO:
		return "io_failure"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FailureKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "malformed_class_file":
		*k = FailureMalformed
	default:
		*k = FailureIO
	}
	return nil
}

// ScanFailure records a candidate file that was skipped.
type ScanFailure struct {
	// Location is CandidateFile.Location of the skipped file.
	Location string `json:"location"`

	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// Message is the error text.
	Message string `json:"message"`
}
