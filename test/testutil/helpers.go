// Package testutil provides the fake vault server, fixture builders,
// and testify mocks shared by integration tests and benchmarks.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lsvault/lsvault/internal/config"
	"github.com/lsvault/lsvault/internal/models"
)

type storedDoc struct {
	content []byte
	doc     models.Document
}

// FakeVaultServer speaks the vault API over real HTTP: login, vault and
// document routes, and the per-vault websocket event feed. Documents
// written through it broadcast feed events like the production server.
type FakeVaultServer struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]string
	tokens   map[string]string
	vaults   map[string]models.Vault
	docs     map[string]map[string]storedDoc
	feeds    map[*websocket.Conn]string

	// MaxDocuments caps documents per vault; creating one past the cap
	// fails with 507 so quota handling can be tested end to end. Zero
	// means unlimited.
	MaxDocuments int
}

// NewFakeVaultServer starts the server with one known account
// (test@example.com / testpassword123).
func NewFakeVaultServer() *FakeVaultServer {
	s := &FakeVaultServer{
		accounts: map[string]string{"test@example.com": "testpassword123"},
		tokens:   make(map[string]string),
		vaults:   make(map[string]models.Vault),
		docs:     make(map[string]map[string]storedDoc),
		feeds:    make(map[*websocket.Conn]string),
	}

	mux := &patternMux{}
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/vaults", s.withAuth(s.handleListVaults))
	mux.HandleFunc("GET /api/v1/vaults/{vault}/documents", s.withAuth(s.handleListDocuments))
	mux.HandleFunc("GET /api/v1/vaults/{vault}/documents/{path...}", s.withAuth(s.handleGetDocument))
	mux.HandleFunc("PUT /api/v1/vaults/{vault}/documents/{path...}", s.withAuth(s.handlePutDocument))
	mux.HandleFunc("DELETE /api/v1/vaults/{vault}/documents/{path...}", s.withAuth(s.handleDeleteDocument))
	mux.HandleFunc("GET /api/v1/vaults/{vault}/events", s.handleEvents)

	s.Server = httptest.NewServer(mux)
	return s
}

// patternMux reimplements the Go 1.22 "METHOD /path/{wildcard}" ServeMux
// patterns used above so the fake server builds with Go 1.21: routes
// match against the escaped path and captured wildcard values are
// unescaped, mirroring net/http's pattern semantics.
type patternMux struct {
	routes []patternRoute
}

type patternRoute struct {
	method   string
	segments []string // literal, "{name}", or trailing "{name...}"
	handler  http.HandlerFunc
}

func (m *patternMux) HandleFunc(pattern string, handler http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	m.routes = append(m.routes, patternRoute{
		method:   method,
		segments: strings.Split(strings.TrimPrefix(path, "/"), "/"),
		handler:  handler,
	})
}

func (m *patternMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/")

	var allowed []string
	for _, route := range m.routes {
		values, ok := route.match(segments)
		if !ok {
			continue
		}
		if r.Method != route.method && !(r.Method == http.MethodHead && route.method == http.MethodGet) {
			allowed = append(allowed, route.method)
			continue
		}
		route.handler(w, r.WithContext(context.WithValue(r.Context(), pathValuesKey{}, values)))
		return
	}
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	http.NotFound(w, r)
}

func (route patternRoute) match(segments []string) (map[string]string, bool) {
	values := make(map[string]string)
	for i, pat := range route.segments {
		if strings.HasPrefix(pat, "{") && strings.HasSuffix(pat, "...}") {
			if i >= len(segments) {
				return nil, false
			}
			values[pat[1:len(pat)-4]] = pathUnescape(strings.Join(segments[i:], "/"))
			return values, true
		}
		if i >= len(segments) {
			return nil, false
		}
		if strings.HasPrefix(pat, "{") && strings.HasSuffix(pat, "}") {
			values[pat[1:len(pat)-1]] = pathUnescape(segments[i])
			continue
		}
		if pat != segments[i] {
			return nil, false
		}
	}
	if len(segments) != len(route.segments) {
		return nil, false
	}
	return values, true
}

type pathValuesKey struct{}

// pathValue is the Go 1.21 stand-in for http.Request.PathValue.
func pathValue(r *http.Request, name string) string {
	values, _ := r.Context().Value(pathValuesKey{}).(map[string]string)
	return values[name]
}

func pathUnescape(s string) string {
	unescaped, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}

// Close drops live feed connections before stopping the listener.
func (s *FakeVaultServer) Close() {
	s.mu.Lock()
	for conn := range s.feeds {
		_ = conn.Close()
	}
	s.feeds = make(map[*websocket.Conn]string)
	s.mu.Unlock()

	s.Server.Close()
}

// AddAccount registers a login.
func (s *FakeVaultServer) AddAccount(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = password
}

// AddVault registers a vault.
func (s *FakeVaultServer) AddVault(vault models.Vault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults[vault.ID] = vault
	if s.docs[vault.ID] == nil {
		s.docs[vault.ID] = make(map[string]storedDoc)
	}
}

// IssueToken mints a valid bearer token without going through login.
func (s *FakeVaultServer) IssueToken(email string) string {
	token := randomToken()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = email
	return token
}

// SeedDocument stores a document directly, without emitting an event.
func (s *FakeVaultServer) SeedDocument(vaultID, path string, content []byte, modifiedAt time.Time) models.Document {
	doc := models.Document{
		Path:           models.NormalizePath(path),
		SizeBytes:      int64(len(content)),
		FileModifiedAt: modifiedAt.UTC(),
		ContentHash:    models.HashContent(content),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[vaultID] == nil {
		s.docs[vaultID] = make(map[string]storedDoc)
	}
	s.docs[vaultID][doc.Path] = storedDoc{content: append([]byte(nil), content...), doc: doc}
	return doc
}

// Document returns stored content for assertions.
func (s *FakeVaultServer) Document(vaultID, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[vaultID][models.NormalizePath(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), stored.content...), true
}

// DocumentCount returns how many documents a vault holds.
func (s *FakeVaultServer) DocumentCount(vaultID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[vaultID])
}

// PushEvent broadcasts a manufactured feed event, as if another client
// had changed the vault.
func (s *FakeVaultServer) PushEvent(ev models.VaultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(ev)
}

func (s *FakeVaultServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid login payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if password, ok := s.accounts[req.Email]; !ok || password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	token := randomToken()
	s.tokens[token] = req.Email
	writeJSON(w, map[string]string{"token": token})
}

func (s *FakeVaultServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or unknown token")
			return
		}
		next(w, r)
	}
}

func (s *FakeVaultServer) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[header[len(prefix):]]
	return ok
}

func (s *FakeVaultServer) handleListVaults(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vaults := make([]models.Vault, 0, len(s.vaults))
	for _, v := range s.vaults {
		vaults = append(vaults, v)
	}
	writeJSON(w, map[string]interface{}{"vaults": vaults})
}

func (s *FakeVaultServer) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	vaultID := pathValue(r, "vault")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[vaultID]; !ok {
		writeError(w, http.StatusNotFound, "vault_not_found", "no such vault")
		return
	}

	documents := make([]models.Document, 0, len(s.docs[vaultID]))
	for _, stored := range s.docs[vaultID] {
		documents = append(documents, stored.doc)
	}
	writeJSON(w, map[string]interface{}{"documents": documents})
}

func (s *FakeVaultServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	vaultID := pathValue(r, "vault")
	path := models.NormalizePath(pathValue(r, "path"))

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[vaultID][path]
	if !ok {
		writeError(w, http.StatusNotFound, "document_not_found", "no such document")
		return
	}
	writeJSON(w, map[string]interface{}{
		"content":  stored.content,
		"document": stored.doc,
	})
}

func (s *FakeVaultServer) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	vaultID := pathValue(r, "vault")
	path := models.NormalizePath(pathValue(r, "path"))

	var req struct {
		Content        []byte    `json:"content"`
		FileModifiedAt time.Time `json:"fileModifiedAt"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid document payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[vaultID]; !ok {
		writeError(w, http.StatusNotFound, "vault_not_found", "no such vault")
		return
	}

	_, exists := s.docs[vaultID][path]
	if !exists && s.MaxDocuments > 0 && len(s.docs[vaultID]) >= s.MaxDocuments {
		writeError(w, http.StatusInsufficientStorage, "quota_exceeded", "storage limit exceeded")
		return
	}

	doc := models.Document{
		Path:           path,
		SizeBytes:      int64(len(req.Content)),
		FileModifiedAt: req.FileModifiedAt.UTC(),
		ContentHash:    models.HashContent(req.Content),
	}
	s.docs[vaultID][path] = storedDoc{content: req.Content, doc: doc}

	s.broadcastLocked(models.VaultEvent{
		Type:       models.VaultEventDocUpdated,
		VaultID:    vaultID,
		Document:   doc,
		OccurredAt: time.Now().UTC(),
	})

	writeJSON(w, map[string]interface{}{"document": doc})
}

func (s *FakeVaultServer) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	vaultID := pathValue(r, "vault")
	path := models.NormalizePath(pathValue(r, "path"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[vaultID][path]; !ok {
		writeError(w, http.StatusNotFound, "document_not_found", "no such document")
		return
	}
	delete(s.docs[vaultID], path)

	s.broadcastLocked(models.VaultEvent{
		Type:       models.VaultEventDocDeleted,
		VaultID:    vaultID,
		Document:   models.Document{Path: path},
		OccurredAt: time.Now().UTC(),
	})

	writeJSON(w, map[string]interface{}{})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *FakeVaultServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or unknown token")
		return
	}
	vaultID := pathValue(r, "vault")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.feeds[conn] = vaultID
	s.mu.Unlock()

	// Reading services the client's pings; any error means the feed
	// consumer went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.feeds, conn)
				s.mu.Unlock()
				_ = conn.Close()
				return
			}
		}
	}()
}

// broadcastLocked delivers ev to every feed subscribed to its vault.
// Caller holds s.mu, which also serializes connection writes.
func (s *FakeVaultServer) broadcastLocked(ev models.VaultEvent) {
	for conn, vaultID := range s.feeds {
		if vaultID != ev.VaultID {
			continue
		}
		if err := conn.WriteJSON(ev); err != nil {
			delete(s.feeds, conn)
			_ = conn.Close()
		}
	}
}

// TestConfig builds a config pointed at a server URL with fast timings
// and every path under dataDir.
func TestConfig(dataDir, baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 10 * time.Second
	cfg.API.MaxRetries = 2
	cfg.API.RetryDelay = 10 * time.Millisecond
	cfg.Storage.DataDir = dataDir
	cfg.Storage.StateDir = filepath.Join(dataDir, "state")
	cfg.Storage.TempDir = filepath.Join(dataDir, "tmp")
	cfg.Storage.SessionsFile = filepath.Join(dataDir, "sessions.json")
	cfg.Auth.CredentialsFile = filepath.Join(dataDir, "credentials.json")
	cfg.Sync.DebounceDelay = 50 * time.Millisecond
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	cfg.Log.Color = false
	cfg.Log.File = ""
	return cfg
}

// SkipIfShort skips the test under -short.
func SkipIfShort(t *testing.T, reason string) {
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}

func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
