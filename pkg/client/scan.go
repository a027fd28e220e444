package client

import "context"

// ScanService handles configuration scanning API calls
type ScanService struct {
	client *Client
}

// ScanContentRequest submits configuration content for scanning
type ScanContentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ScanPathRequest scans a file or directory on the server's filesystem
type ScanPathRequest struct {
	Path string `json:"path"`
}

// Content evaluates the active rules against uploaded configuration content
func (s *ScanService) Content(ctx context.Context, filename, content string) (*ScanResult, error) {
	req := ScanContentRequest{Filename: filename, Content: content}

	var result ScanResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/scan", req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Path evaluates the active rules against a file or directory on the server
func (s *ScanService) Path(ctx context.Context, path string) (*ScanResult, error) {
	req := ScanPathRequest{Path: path}

	var result ScanResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/scan/path", req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ReloadCatalog re-reads the server's rules file and upserts its contents
func (s *ScanService) ReloadCatalog(ctx context.Context) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/catalog/reload", nil, nil)
}
