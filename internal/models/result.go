package models

import "time"

// TransferError records one failed path from a batch run.
type TransferError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SyncResult is the outcome of one executor invocation. A batch that hit
// errors still reports accurate counters, so callers can tell partial
// failure from total failure by comparing counters against the diff.
type SyncResult struct {
	SyncID           string          `json:"sync_id"`
	FilesUploaded    int             `json:"files_uploaded"`
	FilesDownloaded  int             `json:"files_downloaded"`
	FilesDeleted     int             `json:"files_deleted"`
	BytesTransferred int64           `json:"bytes_transferred"`
	Errors           []TransferError `json:"errors,omitempty"`
	Aborted          bool            `json:"aborted,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	Duration         time.Duration   `json:"duration"`
}

// RecordError appends a per-path failure without stopping the batch.
func (r *SyncResult) RecordError(path string, err error) {
	r.Errors = append(r.Errors, TransferError{Path: path, Message: err.Error()})
}

// HasErrors reports whether any path failed.
func (r *SyncResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// FilesTransferred returns the combined transfer counter.
func (r *SyncResult) FilesTransferred() int {
	return r.FilesUploaded + r.FilesDownloaded
}

// Merge folds another result into this one; used when a sync cycle runs
// a pull pass followed by a push pass.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.FilesUploaded += other.FilesUploaded
	r.FilesDownloaded += other.FilesDownloaded
	r.FilesDeleted += other.FilesDeleted
	r.BytesTransferred += other.BytesTransferred
	r.Errors = append(r.Errors, other.Errors...)
	r.Aborted = r.Aborted || other.Aborted
	r.Duration += other.Duration
}
