package constants

// RecordStatus is the canonical status for rows in earnings_records.
type RecordStatus string

// Stable values (store these exact strings in DB).
const (
	RecordStatusUploaded RecordStatus = "UPLOADED" // file accepted, nothing extracted yet
	RecordStatusOCROK    RecordStatus = "OCR_OK"   // text acquired
	RecordStatusParsed   RecordStatus = "PARSED"   // fields extracted
	RecordStatusAudited  RecordStatus = "AUDITED"  // at least one audit stored
	RecordStatusFailed   RecordStatus = "FAILED"   // terminal failure
)
