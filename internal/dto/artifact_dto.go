package dto

// ArtifactResponse returns the stored reference of an uploaded project artifact.
type ArtifactResponse struct {
	FileRef  string `json:"file_ref"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}
