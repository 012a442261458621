package ports

// BatchRecord is one delivered message: an opaque id and a JSON body that
// should decode to a document.
type BatchRecord struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// RecordStatus classifies the outcome of one record.
type RecordStatus string

const (
	StatusOK               RecordStatus = "ok"
	StatusParseError       RecordStatus = "parse_error"
	StatusPersistenceError RecordStatus = "persistence_error"
	StatusFailed           RecordStatus = "failed"
)

// Link names a group a document joined and how it got there
// ("direct" or "indirect").
type Link struct {
	SampleID string `json:"sample_id"`
	Via      string `json:"via"`
}

// RecordOutcome reports what happened to one record of a batch.
type RecordOutcome struct {
	ID       string       `json:"id"`
	Status   RecordStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
	Direct   []string     `json:"direct,omitempty"`
	Inserted []Link       `json:"inserted,omitempty"`
}

// BatchResult is the structured partial-success result of a batch. Every
// record is attempted; Records holds one outcome per input, in input order.
type BatchResult struct {
	BatchID   string          `json:"batch_id"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Records   []RecordOutcome `json:"records"`
}

// Batch status codes, numerically equal to HTTP 200 and 500.
const (
	BatchStatusOK     = 200
	BatchStatusFailed = 500
)

// StatusCode is BatchStatusOK when every record succeeded and
// BatchStatusFailed otherwise.
func (r BatchResult) StatusCode() int {
	if r.Failed > 0 {
		return BatchStatusFailed
	}
	return BatchStatusOK
}

// FailedIDs returns the ids of records that did not succeed.
func (r BatchResult) FailedIDs() []string {
	var out []string
	for _, o := range r.Records {
		if o.Status != StatusOK {
			out = append(out, o.ID)
		}
	}
	return out
}
