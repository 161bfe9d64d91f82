package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// FSTranscriptStore implements the TranscriptStore port on the local filesystem.
//
// Layout:
//
//	<root>/
//	  <persona-slug>/<YYYYMMDDTHHMMSSZ>_<request_id>.json
//
// Each file holds one pretty-printed TranscriptV1. Append stamps a Sequence
// one above the highest on disk, so creation order survives restarts.
type FSTranscriptStore struct {
	Root string
	Log  logging.Logger

	mu      sync.Mutex
	seq     uint64
	seqRead bool
}

func NewFSTranscriptStore(root string, log logging.Logger) *FSTranscriptStore {
	return &FSTranscriptStore{Root: root, Log: log}
}

func (s *FSTranscriptStore) Append(req ports.AppendTranscriptRequest) error {
	root := strings.TrimSpace(s.Root)
	if root == "" {
		return apperrors.NewPersistence("transcript store: root is empty", nil)
	}
	t := req.Transcript
	if !domain.IsValidRequestID(t.RequestID) {
		return apperrors.NewPersistence("transcript store: invalid request_id: "+t.RequestID, nil)
	}

	rel := domain.TranscriptRelPath(t.PersonaOrDefault(), t.CreatedAt, t.RequestID)
	p := filepath.Join(root, filepath.FromSlash(rel))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(p); err == nil {
		return apperrors.NewPersistence("transcript store: transcript already exists: "+rel, nil)
	}
	if !s.seqRead {
		all, err := s.walk(root, domain.PersonaMatcher{})
		if err != nil {
			return apperrors.NewPersistence("transcript store: scan failed", err)
		}
		for _, existing := range all {
			s.seq = max(s.seq, existing.Sequence)
		}
		s.seqRead = true
	}
	t.Sequence = s.seq + 1
	if err := writeJSONAtomic(p, t); err != nil {
		return apperrors.NewPersistence("transcript store: write failed", err)
	}
	s.seq = t.Sequence
	return nil
}

func (s *FSTranscriptStore) ListByPersona(req ports.ListTranscriptsRequest) (ports.ListTranscriptsResult, error) {
	root := strings.TrimSpace(s.Root)
	if root == "" {
		return ports.ListTranscriptsResult{}, apperrors.NewPersistence("transcript store: root is empty", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.walk(root, domain.NewPersonaMatcher(req.Personas))
	if err != nil {
		return ports.ListTranscriptsResult{}, apperrors.NewPersistence("transcript store: list failed", err)
	}
	return ports.ListTranscriptsResult{ByPersona: groupByPersona(all, req.CapPerPersona)}, nil
}

// walk reads every readable transcript under root that matcher accepts.
// Caller holds s.mu.
func (s *FSTranscriptStore) walk(root string, matcher domain.PersonaMatcher) ([]contractchat.TranscriptV1, error) {
	var all []contractchat.TranscriptV1
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			// One level of persona directories.
			if filepath.Dir(p) != filepath.Clean(root) {
				return fs.SkipDir
			}
			if !matcher.Match(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !domain.IsTranscriptFileName(d.Name()) {
			return nil
		}
		t, rerr := readTranscript(p)
		if rerr != nil {
			s.Log.WithField("path", p).WithError(rerr).Warn("skipping unreadable transcript")
			return nil
		}
		if !matcher.Match(t.PersonaOrDefault()) {
			return nil
		}
		all = append(all, t)
		return nil
	})
	return all, err
}

func readTranscript(p string) (contractchat.TranscriptV1, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return contractchat.TranscriptV1{}, err
	}
	var t contractchat.TranscriptV1
	if err := json.Unmarshal(b, &t); err != nil {
		return contractchat.TranscriptV1{}, err
	}
	if t.RequestID == "" {
		return contractchat.TranscriptV1{}, fmt.Errorf("missing request_id")
	}
	return t, nil
}

// groupByPersona groups transcripts by persona label, orders each group
// oldest first, and keeps at most capPer of the most recent per group.
// Equal timestamps fall back to Sequence, then to input order.
func groupByPersona(all []contractchat.TranscriptV1, capPer int) map[string][]contractchat.TranscriptV1 {
	out := map[string][]contractchat.TranscriptV1{}
	for _, t := range all {
		label := t.PersonaOrDefault()
		out[label] = append(out[label], t)
	}
	for label, items := range out {
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			}
			return items[i].Sequence < items[j].Sequence
		})
		if capPer > 0 && len(items) > capPer {
			items = items[len(items)-capPer:]
		}
		out[label] = items
	}
	return out
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json for %s: %v", path, err)
	}
	// Ensure newline for nicer diffs.
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	return writeFileAtomic(path, b, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to ensure dir for %s: %v", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %v", path, err)
	}
	return nil
}
