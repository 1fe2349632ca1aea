package domain

import "time"

// InFlightState classifies a document's pending index work
type InFlightState string

const (
	InFlightIndexing InFlightState = "indexing"
	InFlightPending  InFlightState = "pending"
	InFlightRetrying InFlightState = "retrying"
	InFlightFailed   InFlightState = "failed"
)

// IndexedDocument summarises the chunks stored for one document
type IndexedDocument struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InFlightDocument is a document with queued or running index work
type InFlightDocument struct {
	DocumentID string        `json:"document_id"`
	Title      string        `json:"title"`
	State      InFlightState `json:"state"`
	Event      EventName     `json:"event"`
	Queue      string        `json:"queue"`
	JobID      string        `json:"job_id"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
}

// IndexingStatus is the per-team projection of index and queue state
type IndexingStatus struct {
	Indexed  []IndexedDocument  `json:"indexed"`
	Indexing []InFlightDocument `json:"indexing"`
}
