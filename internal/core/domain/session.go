package domain

import "time"

type Session struct {
	ID         string       `json:"session_id"`
	Filename   string       `json:"filename"`
	Kind       DocumentKind `json:"doc_kind"`
	PageCount  int          `json:"page_count"`
	ChunkCount int          `json:"chunk_count"`
	Degraded   bool         `json:"degraded"`
	CreatedAt  time.Time    `json:"created_at"`
}

type UploadResult struct {
	SessionID   string       `json:"session_id"`
	Filename    string       `json:"filename"`
	Kind        DocumentKind `json:"doc_kind"`
	PageCount   int          `json:"page_count"`
	ChunkCount  int          `json:"chunk_count"`
	PreviewText string       `json:"preview_text"`
	Degraded    bool         `json:"degraded"`
}

type IndexStats struct {
	ChunkCount   int `json:"chunk_count"`
	FeatureCount int `json:"feature_count"`
}

type SessionDiagnostics struct {
	Session
	FeatureCount int      `json:"feature_count"`
	SampleChunks []string `json:"sample_chunks"`
}
