package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusOCROK     JobStatus = "OCR_OK"    // text lines recognized
	JobStatusExtracted JobStatus = "EXTRACTED" // record saved
	JobStatusFailed    JobStatus = "FAILED"
)
