package incremental

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"tephra/internal/atom"
	"tephra/internal/codex"
)

// bump when diskPayload or anything it embeds changes shape
const diskSchemaVersion uint16 = 1

// StateFile is the name of the state file inside the cache directory.
const StateFile = "state.mp"

// DiskStore persists the state as one msgpack file. Thread-safe.
type DiskStore struct {
	mu  sync.RWMutex
	dir string
}

type diskPayload struct {
	Schema     uint16
	Strings    []string
	Metadata   *codex.CodebaseMetadata
	References *codex.SymbolReferences
	Issues     []SymbolIssues
}

// NewDiskStore keeps the state under dir; the directory is created on the
// first Save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// DefaultCacheDir returns $XDG_CACHE_HOME/<app> or ~/.cache/<app>.
func DefaultCacheDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

func (s *DiskStore) path() string {
	return filepath.Join(s.dir, StateFile)
}

// Load decodes the state file. A missing file or one written with another
// schema is ErrNoState.
func (s *DiskStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	// schema goes first so a stale file is rejected before its body is read
	var p diskPayload
	schema, err := dec.DecodeUint16()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	if schema != diskSchemaVersion {
		return nil, ErrNoState
	}
	p.Schema = schema
	if err := dec.Decode(&p.Strings); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	if err := dec.Decode(&p.Metadata); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	p.References = codex.NewSymbolReferences()
	if err := dec.Decode(p.References); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	if err := dec.Decode(&p.Issues); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	if p.Metadata == nil {
		return nil, ErrNoState
	}

	in, err := atom.NewInternerFromSnapshot(p.Strings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(), err)
	}
	if top := max(p.Metadata.HighestAtom(), p.References.HighestAtom()); !in.Has(top) {
		return nil, fmt.Errorf("%s: atom %d outside of %d stored strings", s.path(), top, in.Len())
	}
	p.Metadata.EnsureRuntime(in)
	return &State{
		Strings:    p.Strings,
		Metadata:   p.Metadata,
		References: p.References,
		Issues:     unflattenIssues(p.Issues),
	}, nil
}

// Save writes the state to a temp file and renames it over the old one.
func (s *DiskStore) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	// после успешного Rename файла уже нет, ошибку игнорируем
	defer os.Remove(tmp)

	refs := st.References
	if refs == nil {
		refs = codex.NewSymbolReferences()
	}
	enc := msgpack.NewEncoder(f)
	for _, v := range []any{diskSchemaVersion, st.Strings, st.Metadata, refs, FlattenIssues(st.Issues)} {
		if err := enc.Encode(v); err != nil {
			f.Close()
			return fmt.Errorf("encode state: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// Drop removes the state file.
func (s *DiskStore) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
