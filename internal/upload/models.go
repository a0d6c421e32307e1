package upload

// InitiateRequest represents the request to start a multipart upload
type InitiateRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
}

// InitiateResponse identifies the new upload session and tells the client how to slice the file
type InitiateResponse struct {
	Bucket                   string `json:"bucket"`
	Region                   string `json:"region"`
	Key                      string `json:"key"`
	UploadID                 string `json:"uploadId"`
	ExpiresInSeconds         int    `json:"expiresInSeconds"`
	RecommendedPartSizeBytes int64  `json:"recommendedPartSizeBytes"`
}

// PresignPartResponse contains a single signed part URL
type PresignPartResponse struct {
	URL              string `json:"url"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// PresignPartsRequest asks for signed URLs for several parts at once
type PresignPartsRequest struct {
	Key         string `json:"key"`
	UploadID    string `json:"uploadId"`
	PartNumbers []int  `json:"partNumbers"`
}

// PresignedPart pairs a part number with its signed upload URL
type PresignedPart struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

// PresignPartsResponse lists signed URLs in request order
type PresignPartsResponse struct {
	Parts            []PresignedPart `json:"parts"`
	ExpiresInSeconds int             `json:"expiresInSeconds"`
}

// CompletedPart is one entry of the completion manifest. The field names
// follow the S3 wire casing that browser clients already use.
type CompletedPart struct {
	ETag       string `json:"ETag"`
	PartNumber int    `json:"PartNumber"`
}

// CompleteRequest represents the request to complete a multipart upload
type CompleteRequest struct {
	Key      string          `json:"key"`
	UploadID string          `json:"uploadId"`
	Parts    []CompletedPart `json:"parts"`
}

// CompleteResponse contains the final object identity as reported by the backend
type CompleteResponse struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Location  string `json:"location,omitempty"`
	VersionID string `json:"versionId,omitempty"`
	ETag      string `json:"etag,omitempty"`
}

// AbortRequest represents the request to abort a multipart upload
type AbortRequest struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
}

// AbortResponse confirms the abort
type AbortResponse struct {
	Aborted bool `json:"aborted"`
}
