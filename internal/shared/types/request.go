// Package types holds request/response shapes shared across API layers.
package types

// ExecuteRequest asks for one snippet execution.
type ExecuteRequest struct {
	Code               string `json:"code" binding:"required"`
	TimeoutMs          int    `json:"timeout_ms,omitempty"`
	CaptureOutput      *bool  `json:"capture_output,omitempty"`
	MeasurePerformance *bool  `json:"measure_performance,omitempty"`
}

// TransformRequest asks for an import rewrite (with or without execution).
type TransformRequest struct {
	Code string `json:"code" binding:"required"`
}

// TestRunRequest asks for a test run: either a single file within a
// chapter, or the chapter's whole suite when File is empty.
type TestRunRequest struct {
	Chapter string `json:"chapter" binding:"required"`
	File    string `json:"file,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
