package model

// QueryRequest asks the service to run a query against a snapshot.
type QueryRequest struct {
	Snapshot string `json:"snapshot"`
	Query    string `json:"query"`
	// Limit caps the number of rows; zero uses the configured default.
	Limit int `json:"limit,omitempty"`
	// RunID lets callers pick the run identifier so they can cancel the
	// run while it executes. Empty generates one.
	RunID string `json:"run_id,omitempty"`
}

// ResultRow is one rendered query result.
type ResultRow struct {
	Text     string      `json:"text"`
	HTML     string      `json:"html"`
	ObjectID string      `json:"object_id,omitempty"`
	Value    interface{} `json:"value,omitempty"`
}

// QueryResult is the rendered outcome of a query.
type QueryResult struct {
	RunID     string      `json:"run_id"`
	Snapshot  string      `json:"snapshot"`
	Query     string      `json:"query"`
	Rows      []ResultRow `json:"rows"`
	Truncated bool        `json:"truncated"`
	// Output collects print and println calls made by the query.
	Output    string `json:"output,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Len returns the number of rows.
func (r *QueryResult) Len() int {
	return len(r.Rows)
}

// BatchResult pairs a query of a batch with its result or error.
type BatchResult struct {
	Query     string       `json:"query"`
	Result    *QueryResult `json:"result,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// ClassHistogramEntry summarizes the instances of one class.
type ClassHistogramEntry struct {
	ClassName    string `json:"class_name"`
	Category     string `json:"category"`
	Instances    int    `json:"instances"`
	ShallowBytes int64  `json:"shallow_bytes"`
}

// SnapshotInfo describes a heap dump known to the service.
type SnapshotInfo struct {
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	Loaded    bool   `json:"loaded"`
	Classes   int    `json:"classes,omitempty"`
	Instances int    `json:"instances,omitempty"`
	Roots     int    `json:"roots,omitempty"`
}

// FieldRow is one rendered field of an inspected object.
type FieldRow struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Static bool   `json:"static,omitempty"`
	Text   string `json:"text"`
	HTML   string `json:"html"`
}

// ObjectDetail describes one heap object for the object browser.
type ObjectDetail struct {
	ID           string      `json:"id"`
	ClassName    string      `json:"class_name"`
	Text         string      `json:"text"`
	HTML         string      `json:"html"`
	Size         int64       `json:"size"`
	RetainedSize int64       `json:"retained_size"`
	Root         string      `json:"root,omitempty"`
	Fields       []FieldRow  `json:"fields"`
	Referrers    []ResultRow `json:"referrers"`
	Referees     []ResultRow `json:"referees"`
	Paths        []ResultRow `json:"paths"`
}
