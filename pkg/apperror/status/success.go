package status

type SuccessCode int

const (
	OK SuccessCode = 200
	// Accepted is returned when a run completed without indexing anything.
	Accepted SuccessCode = 202
)
