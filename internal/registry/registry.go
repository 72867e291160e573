// Package registry is the single source of truth for every deployed app:
// a JSON document under data/apps.json, written atomically via a sibling
// temp file and os.Rename, guarded by one RWMutex.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/glinrdock-paas/supervisor/internal/crypto"
	"github.com/glinrdock-paas/supervisor/internal/health"
	"github.com/glinrdock-paas/supervisor/internal/version"
)

// Status is an app's last-known supervisor status.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusCrashed  Status = "crashed"
)

// Kind is the classifier-detected project kind.
type Kind string

const (
	KindNode   Kind = "node"
	KindStatic Kind = "static"
)

var ErrNotFound = errors.New("registry: app not found")
var ErrAlreadyExists = errors.New("registry: app already exists")
var ErrInvalidName = errors.New("registry: invalid app name")

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// NormalizeName lowercases and replaces runs of invalid characters with a
// single hyphen, per the deployment pipeline's name normalization rule.
func NormalizeName(raw string) string {
	lower := []rune{}
	for _, r := range raw {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		lower = append(lower, r)
	}
	return collapseInvalid(string(lower))
}

func collapseInvalid(s string) string {
	var out []rune
	lastWasDash := false
	for _, r := range s {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if valid {
			out = append(out, r)
			lastWasDash = r == '-'
			continue
		}
		if !lastWasDash {
			out = append(out, '-')
			lastWasDash = true
		}
	}
	return string(out)
}

// App is the persisted record for one supervised application. Unknown
// fields found on disk are discarded on read, per the tagged-record design
// decision over a dynamically-shaped document.
type App struct {
	Name           string            `json:"name"`
	Kind           Kind              `json:"kind"`
	WorkingDir     string            `json:"working_dir"`
	Port           int               `json:"port"`
	CurrentVersion string            `json:"current_version"`
	Env            map[string]string `json:"env"`
	AutoRestart    bool              `json:"auto_restart"`
	WebhookSecret  []byte            `json:"webhook_secret,omitempty"`
	RepoURL        string            `json:"repo_url,omitempty"`
	Branch         string            `json:"branch,omitempty"`
	StartCommand   string            `json:"start_command"`
	StartArgs      []string          `json:"start_args"`
	Status         Status            `json:"status"`
	Health         health.Result     `json:"health"`
	Versions       []version.Version `json:"versions"`
	CreatedAt      time.Time         `json:"created_at"`
}

// document is the on-disk shape of data/apps.json.
type document struct {
	Apps []App `json:"apps"`
}

// Registry guards the apps.json document with a single RWMutex: one writer
// lock, concurrent readers, no long-lived cache that can diverge from disk.
type Registry struct {
	mu   sync.RWMutex
	path string
	key  []byte // optional AES-256 master key; webhook secrets ride in plaintext on disk without it
}

// Open prepares a Registry backed by path, creating an empty document if
// none exists yet. If SUPERVISOR_SECRET_KEY is set, webhook secrets are
// sealed at rest with it; otherwise they are stored as received.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}
	if key, err := crypto.LoadMasterKeyFromEnv(); err == nil {
		r.key = key
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.writeLocked(document{Apps: []App{}}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

const sealedPrefix = "enc:"

// seal encrypts a webhook secret for storage. With no master key configured
// it is a no-op, so secrets keep working before a key is ever provisioned.
func (r *Registry) seal(plain []byte) []byte {
	if r.key == nil || len(plain) == 0 {
		return plain
	}
	nonce, ciphertext, err := crypto.Encrypt(r.key, plain)
	if err != nil {
		return plain
	}
	return []byte(sealedPrefix + base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)))
}

// open reverses seal. Values without the sealed prefix are returned as-is,
// so plaintext secrets written before a master key existed still round-trip.
func (r *Registry) open(stored []byte) []byte {
	if r.key == nil || len(stored) == 0 {
		return stored
	}
	s := string(stored)
	if !strings.HasPrefix(s, sealedPrefix) {
		return stored
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, sealedPrefix))
	if err != nil || len(raw) < crypto.NonceSize {
		return stored
	}
	nonce, ciphertext := raw[:crypto.NonceSize], raw[crypto.NonceSize:]
	plain, err := crypto.Decrypt(r.key, nonce, ciphertext)
	if err != nil {
		return stored
	}
	return plain
}

func (r *Registry) readLocked() (document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return document{}, fmt.Errorf("registry: failed to read %s: %w", r.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("registry: corrupt registry document: %w", err)
	}
	for i := range doc.Apps {
		doc.Apps[i].WebhookSecret = r.open(doc.Apps[i].WebhookSecret)
	}
	return doc, nil
}

// writeLocked serializes doc to a sibling temp file and renames it over
// the target path, making the write atomic on POSIX filesystems. Caller
// must hold r.mu for writing.
func (r *Registry) writeLocked(doc document) error {
	sealedDoc := document{Apps: make([]App, len(doc.Apps))}
	copy(sealedDoc.Apps, doc.Apps)
	for i := range sealedDoc.Apps {
		sealedDoc.Apps[i].WebhookSecret = r.seal(sealedDoc.Apps[i].WebhookSecret)
	}

	data, err := json.MarshalIndent(sealedDoc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: failed to marshal document: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: failed to create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".apps-*.json.tmp")
	if err != nil {
		return fmt.Errorf("registry: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: failed to rename temp file over registry: %w", err)
	}
	return nil
}

// List returns every registered app.
func (r *Registry) List() ([]App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.readLocked()
	if err != nil {
		return nil, err
	}
	return doc.Apps, nil
}

// Get returns a single app by name.
func (r *Registry) Get(name string) (App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.readLocked()
	if err != nil {
		return App{}, err
	}
	for _, a := range doc.Apps {
		if a.Name == name {
			return a, nil
		}
	}
	return App{}, ErrNotFound
}

// Create validates and inserts a new app record.
func (r *Registry) Create(app App) error {
	if !namePattern.MatchString(app.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, app.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readLocked()
	if err != nil {
		return err
	}
	for _, a := range doc.Apps {
		if a.Name == app.Name {
			return ErrAlreadyExists
		}
		if a.Port == app.Port {
			return fmt.Errorf("registry: port %d already assigned to app %q", app.Port, a.Name)
		}
	}

	app.CreatedAt = time.Now()
	doc.Apps = append(doc.Apps, app)
	return r.writeLocked(doc)
}

// Update applies mutate to the named app's record and persists the result.
// mutate receives a copy; it must return the copy it wants saved.
func (r *Registry) Update(name string, mutate func(App) (App, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readLocked()
	if err != nil {
		return err
	}

	for i, a := range doc.Apps {
		if a.Name == name {
			updated, err := mutate(a)
			if err != nil {
				return err
			}
			updated.Name = name
			doc.Apps[i] = updated
			return r.writeLocked(doc)
		}
	}
	return ErrNotFound
}

// Delete removes the named app's record.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readLocked()
	if err != nil {
		return err
	}

	for i, a := range doc.Apps {
		if a.Name == name {
			doc.Apps = append(doc.Apps[:i], doc.Apps[i+1:]...)
			return r.writeLocked(doc)
		}
	}
	return ErrNotFound
}

// AssignedPorts returns the set of ports currently in use, for the Port
// Allocator's in-use hint.
func (r *Registry) AssignedPorts() (map[int]struct{}, error) {
	apps, err := r.List()
	if err != nil {
		return nil, err
	}
	ports := make(map[int]struct{}, len(apps))
	for _, a := range apps {
		ports[a.Port] = struct{}{}
	}
	return ports, nil
}
