package storage

import (
	"fmt"
	"sync"
	"time"
)

type writeFault struct {
	remaining int
	err       error
}

// MockStore provides an in-memory implementation for testing, with
// per-path fault injection to exercise error handling in callers.
type MockStore struct {
	mu       sync.RWMutex
	files    map[string][]byte
	modTimes map[string]time.Time
	dirs     map[string]bool

	writeFaults map[string]*writeFault
	readErrs    map[string]error
	deleteErrs  map[string]error
	writeCalls  map[string]int
}

// NewMockStore creates a mock document store.
func NewMockStore() *MockStore {
	return &MockStore{
		files:       make(map[string][]byte),
		modTimes:    make(map[string]time.Time),
		dirs:        make(map[string]bool),
		writeFaults: make(map[string]*writeFault),
		readErrs:    make(map[string]error),
		deleteErrs:  make(map[string]error),
		writeCalls:  make(map[string]int),
	}
}

// Write saves data to a file.
func (m *MockStore) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls[path]++

	if fault, ok := m.writeFaults[path]; ok {
		if fault.remaining != 0 {
			if fault.remaining > 0 {
				fault.remaining--
			}
			return fault.err
		}
	}

	m.files[path] = make([]byte, len(data))
	copy(m.files[path], data)
	m.modTimes[path] = time.Now()
	return nil
}

// Read retrieves file contents.
func (m *MockStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.readErrs[path]; ok {
		return nil, err
	}

	if data, ok := m.files[path]; ok {
		result := make([]byte, len(data))
		copy(result, data)
		return result, nil
	}

	return nil, fmt.Errorf("file not found: %s", path)
}

// Delete removes a file.
func (m *MockStore) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.deleteErrs[path]; ok {
		return err
	}

	delete(m.files, path)
	delete(m.modTimes, path)
	return nil
}

// Exists checks if a file exists.
func (m *MockStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists, nil
}

// Stat returns file information.
func (m *MockStore) Stat(path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.files[path]; ok {
		return FileInfo{
			Path:    path,
			Size:    int64(len(data)),
			ModTime: m.modTimes[path],
			IsDir:   false,
		}, nil
	}

	if _, ok := m.dirs[path]; ok {
		return FileInfo{
			Path:  path,
			IsDir: true,
		}, nil
	}

	return FileInfo{}, fmt.Errorf("file not found: %s", path)
}

// SetModTime updates file modification time.
func (m *MockStore) SetModTime(path string, modTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; ok {
		m.modTimes[path] = modTime
		return nil
	}

	return fmt.Errorf("file not found: %s", path)
}

// EnsureDir creates a directory.
func (m *MockStore) EnsureDir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path] = true
	return nil
}

// ListDir returns directory contents. The mock does not model nesting
// and returns every stored entry.
func (m *MockStore) ListDir(path string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []FileInfo
	for filePath, data := range m.files {
		files = append(files, FileInfo{
			Path:    filePath,
			Size:    int64(len(data)),
			ModTime: m.modTimes[filePath],
		})
	}

	for dirPath := range m.dirs {
		files = append(files, FileInfo{
			Path:  dirPath,
			IsDir: true,
		})
	}

	return files, nil
}

// WriteConflictCopy writes data beside path under a conflict name.
func (m *MockStore) WriteConflictCopy(path string, data []byte) (string, error) {
	conflictPath := ConflictCopyName(path, time.Now())

	if err := m.Write(conflictPath, data); err != nil {
		return "", err
	}

	return conflictPath, nil
}

// Fault injection and helpers for tests

// FailWrite makes the next `times` writes to path fail with err.
// Pass a negative count to fail every write.
func (m *MockStore) FailWrite(path string, times int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeFaults[path] = &writeFault{remaining: times, err: err}
}

// FailRead makes every read of path fail with err.
func (m *MockStore) FailRead(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readErrs[path] = err
}

// FailDelete makes every delete of path fail with err.
func (m *MockStore) FailDelete(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteErrs[path] = err
}

// WriteCount reports how many times path was written, including
// attempts that failed.
func (m *MockStore) WriteCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writeCalls[path]
}

// FileExists checks if a file exists (helper for tests).
func (m *MockStore) FileExists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// Files returns the stored file paths.
func (m *MockStore) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}
	return paths
}

// Clear removes all files and directories.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string][]byte)
	m.modTimes = make(map[string]time.Time)
	m.dirs = make(map[string]bool)
	m.writeFaults = make(map[string]*writeFault)
	m.readErrs = make(map[string]error)
	m.deleteErrs = make(map[string]error)
	m.writeCalls = make(map[string]int)
}
