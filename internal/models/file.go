package models

import (
	"crypto/sha256"
	"encoding/hex"
	gopath "path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DocumentExtension is the file extension the engine tracks; everything
// else under the local root is invisible to sync.
const DocumentExtension = ".md"

// FileState identifies one tracked file on either side of a sync pairing.
type FileState struct {
	Path  string    `json:"path"`
	Hash  string    `json:"hash,omitempty"` // hex SHA-256; empty when a remote listing omitted it
	Size  int64     `json:"size"`
	MTime time.Time `json:"mtime"`
}

// HasHash reports whether a content digest is present.
func (f FileState) HasHash() bool {
	return f.Hash != ""
}

// SameContent reports whether two states describe identical content.
// Hashes decide when both sides carry one; otherwise the modification
// time is the only comparable signal.
func (f FileState) SameContent(other FileState) bool {
	if f.HasHash() && other.HasHash() {
		return f.Hash == other.Hash
	}
	return f.MTime.Equal(other.MTime)
}

// HashContent computes the digest used for every FileState, local or
// remote. Identical bytes always hash identically regardless of source.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizePath converts any platform path into the canonical document
// path: forward slashes, no leading slash, NFC normalized.
func NormalizePath(path string) string {
	p := strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
	p = gopath.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return norm.NFC.String(p)
}

// NewLocalFileState builds the state of a file read from disk.
func NewLocalFileState(path string, content []byte, modTime time.Time) FileState {
	return newFileState(path, content, modTime)
}

// NewRemoteFileState builds the state of a document fetched from the
// vault, hashing the same bytes a local read would so cross-side hash
// comparison is meaningful.
func NewRemoteFileState(path string, content []byte, modifiedAt time.Time) FileState {
	return newFileState(path, content, modifiedAt)
}

func newFileState(path string, content []byte, modTime time.Time) FileState {
	return FileState{
		Path:  NormalizePath(path),
		Hash:  HashContent(content),
		Size:  int64(len(content)),
		MTime: modTime.UTC(),
	}
}

// IsDocumentPath reports whether a path names a tracked document.
func IsDocumentPath(path string) bool {
	return strings.HasSuffix(path, DocumentExtension)
}
