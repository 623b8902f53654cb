package peersync

import "github.com/arloliu/leadsync/types"

// VersionsResponse is the body of GET /versions.
type VersionsResponse struct {
	Core     string  `json:"core"`
	Versions []int64 `json:"versions"`
}

// UpdatesResponse is the body of GET /updates.
type UpdatesResponse struct {
	Core    string         `json:"core"`
	Updates []types.Update `json:"updates"`
}

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	Leader string `json:"leader"`
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}
