package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lsvault/lsvault/internal/diff"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/scan"
	syncpkg "github.com/lsvault/lsvault/internal/services/sync"
	"github.com/lsvault/lsvault/internal/state"
	"github.com/lsvault/lsvault/internal/transport"
	"github.com/lsvault/lsvault/test/testutil"
)

// benchSessions satisfies sync.SessionStore without touching disk.
type benchSessions struct {
	session models.SyncSession
}

func (s *benchSessions) Get(id string) (*models.SyncSession, error) {
	if id != s.session.ID {
		return nil, models.ErrSessionNotFound
	}
	session := s.session
	return &session, nil
}

func (s *benchSessions) UpdateLastSync(id string) error { return nil }

func benchSession(localPath string) models.SyncSession {
	return models.SyncSession{
		ID:         "bench",
		VaultID:    "vault-bench",
		LocalPath:  localPath,
		Mode:       models.ModeSync,
		OnConflict: models.ConflictNewer,
	}
}

func noteContent(i int) string {
	return fmt.Sprintf("# Note %d\n\n%s\n", i, strings.Repeat("content ", 50))
}

func seedRemote(vault *transport.MockVault, count int) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		vault.SeedDocument("vault-bench", fmt.Sprintf("notes/note%04d.md", i), []byte(noteContent(i)), at)
	}
}

func writeLocalNotes(b *testing.B, dir string, count int) {
	b.Helper()
	for i := 0; i < count; i++ {
		full := filepath.Join(dir, "notes", fmt.Sprintf("note%04d.md", i))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			b.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(noteContent(i)), 0o644); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkServicePull(b *testing.B) {
	fileCounts := []int{10, 100, 1000}

	for _, count := range fileCounts {
		b.Run(fmt.Sprintf("%dFiles", count), func(b *testing.B) {
			vault := transport.NewMockVault()
			seedRemote(vault, count)
			logger := testutil.NewTestLogger()
			root := b.TempDir()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				dir, err := os.MkdirTemp(root, "pull")
				if err != nil {
					b.Fatal(err)
				}
				svc := syncpkg.NewService(vault, state.NewMockStore(),
					&benchSessions{session: benchSession(dir)}, nil, logger)
				b.StartTimer()

				if _, err := svc.Pull(context.Background(), "bench", syncpkg.Options{}); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "files/sec")
		})
	}
}

func BenchmarkServicePush(b *testing.B) {
	fileCounts := []int{10, 100, 1000}

	for _, count := range fileCounts {
		b.Run(fmt.Sprintf("%dFiles", count), func(b *testing.B) {
			dir := b.TempDir()
			writeLocalNotes(b, dir, count)
			logger := testutil.NewTestLogger()
			sessions := &benchSessions{session: benchSession(dir)}

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				svc := syncpkg.NewService(transport.NewMockVault(), state.NewMockStore(), sessions, nil, logger)
				b.StartTimer()

				if _, err := svc.Push(context.Background(), "bench", syncpkg.Options{}); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "files/sec")
		})
	}
}

// BenchmarkSteadyStateSync measures the no-op cycle on an already
// reconciled session: two scans, two diffs, nothing to transfer. This is
// the cost every watch and cron interval pays.
func BenchmarkSteadyStateSync(b *testing.B) {
	const count = 500

	dir := b.TempDir()
	writeLocalNotes(b, dir, count)
	vault := transport.NewMockVault()
	svc := syncpkg.NewService(vault, state.NewMockStore(),
		&benchSessions{session: benchSession(dir)}, nil, testutil.NewTestLogger())

	if _, err := svc.Sync(context.Background(), "bench", syncpkg.Options{}); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := svc.Sync(context.Background(), "bench", syncpkg.Options{})
		if err != nil {
			b.Fatal(err)
		}
		if result.FilesUploaded+result.FilesDownloaded+result.FilesDeleted != 0 {
			b.Fatal("steady state transferred files")
		}
	}
}

// benchSides builds remote, local, and baseline views for diff
// benchmarks: most paths unchanged, a slice modified on one side, a few
// created and deleted.
func benchSides(count int) (remote, local map[string]models.FileState, baseline *models.SyncState) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	remote = make(map[string]models.FileState, count)
	local = make(map[string]models.FileState, count)
	baseline = models.NewSyncState("bench")

	for i := 0; i < count; i++ {
		path := fmt.Sprintf("notes/note%04d.md", i)
		st := models.FileState{Path: path, Hash: fmt.Sprintf("%064d", i), Size: 400, MTime: at}

		switch {
		case i%10 == 0: // modified remotely
			changed := st
			changed.Hash = fmt.Sprintf("%064d", i+1000000)
			changed.MTime = at.Add(time.Hour)
			remote[path] = changed
			local[path] = st
			baseline.SetReconciled(path, st, st)
		case i%10 == 1: // created locally
			local[path] = st
		case i%10 == 2: // deleted locally
			remote[path] = st
			baseline.SetReconciled(path, st, st)
		default: // unchanged
			remote[path] = st
			local[path] = st
			baseline.SetReconciled(path, st, st)
		}
	}
	return remote, local, baseline
}

func BenchmarkComputePullDiff(b *testing.B) {
	fileCounts := []int{10, 100, 1000}
	engine := diff.NewEngine(testutil.NewTestLogger())

	for _, count := range fileCounts {
		b.Run(fmt.Sprintf("%dFiles", count), func(b *testing.B) {
			remote, local, baseline := benchSides(count)

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				engine.ComputePullDiff(remote, local, baseline)
			}
		})
	}
}

func BenchmarkComputePushDiff(b *testing.B) {
	fileCounts := []int{10, 100, 1000}
	engine := diff.NewEngine(testutil.NewTestLogger())

	for _, count := range fileCounts {
		b.Run(fmt.Sprintf("%dFiles", count), func(b *testing.B) {
			remote, local, baseline := benchSides(count)

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				engine.ComputePushDiff(local, remote, baseline)
			}
		})
	}
}

func BenchmarkLocalScan(b *testing.B) {
	fileCounts := []int{100, 1000}

	for _, count := range fileCounts {
		dir := b.TempDir()
		writeLocalNotes(b, dir, count)
		matcher := ignore.NewMatcher(nil, dir)
		logger := testutil.NewTestLogger()

		// Cold hashes every file; warm reuses the scanner's mtime cache.
		b.Run(fmt.Sprintf("Cold%dFiles", count), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				scanner := scan.NewLocalScanner(dir, matcher, logger)
				if _, err := scanner.Scan(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(fmt.Sprintf("Warm%dFiles", count), func(b *testing.B) {
			scanner := scan.NewLocalScanner(dir, matcher, logger)
			if _, err := scanner.Scan(context.Background()); err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := scanner.Scan(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func benchState(count int) *models.SyncState {
	st := models.NewSyncState("bench")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		path := fmt.Sprintf("notes/note%04d.md", i)
		fs := models.FileState{Path: path, Hash: fmt.Sprintf("%064d", i), Size: 400, MTime: at}
		st.SetReconciled(path, fs, fs)
	}
	return st
}

func openBenchStore(b *testing.B, backend string) state.Store {
	b.Helper()
	logger := testutil.NewTestLogger()

	var (
		store state.Store
		err   error
	)
	switch backend {
	case "JSON":
		store, err = state.NewJSONStore(b.TempDir(), logger)
	case "SQLite":
		store, err = state.NewSQLiteStore(filepath.Join(b.TempDir(), "state.db"), logger)
	default:
		b.Fatalf("unknown backend %s", backend)
	}
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func BenchmarkStateSave(b *testing.B) {
	fileCounts := []int{10, 100, 1000}

	for _, backend := range []string{"JSON", "SQLite"} {
		for _, count := range fileCounts {
			b.Run(fmt.Sprintf("%s_%dFiles", backend, count), func(b *testing.B) {
				store := openBenchStore(b, backend)
				st := benchState(count)

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if err := store.Save(st); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkStateLoad(b *testing.B) {
	fileCounts := []int{10, 100, 1000}

	for _, backend := range []string{"JSON", "SQLite"} {
		for _, count := range fileCounts {
			b.Run(fmt.Sprintf("%s_%dFiles", backend, count), func(b *testing.B) {
				store := openBenchStore(b, backend)
				if err := store.Save(benchState(count)); err != nil {
					b.Fatal(err)
				}

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := store.Load("bench"); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
