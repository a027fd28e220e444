package dto

import "time"

// ScanContentRequest evaluates the active rules against uploaded
// configuration content.
type ScanContentRequest struct {
	Filename string `json:"filename" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

// ScanPathRequest evaluates the active rules against a file or directory on
// the server filesystem.
type ScanPathRequest struct {
	Path string `json:"path" validate:"required"`
}

// FindingDTO is one policy violation produced by a scan
type FindingDTO struct {
	RuleID      string `json:"rule_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Remediation string `json:"remediation"`
}

// ScanResultDTO summarizes one scan run
type ScanResultDTO struct {
	Findings      []FindingDTO `json:"findings"`
	ResourceCount int          `json:"resource_count"`
	RuleCount     int          `json:"rule_count"`
	DurationMS    int64        `json:"duration_ms"`
	ScannedAt     time.Time    `json:"scanned_at"`
}
