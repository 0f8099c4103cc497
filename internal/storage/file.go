package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	logx "notifsnd/pkg/logx"
)

// fileStore keeps state in plain files next to cfg.Path:
//   - <prefix>.state.json     snapshot of all fields
//   - <prefix>.journal.jsonl  one line per committed Update
//   - <prefix>.audit.jsonl    append-only audit log
//   - <prefix>.lock           flock target shared with other processes
//
// Every operation reloads snapshot + journal under the lock, so a CLI
// process and the daemon can share the same files.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	lock   *os.File
	closed bool

	snapshotPath string
	journalPath  string
	auditPath    string
}

type journalRecord struct {
	At  int64             `json:"at"`
	Put map[string][]byte `json:"put,omitempty"`
	Del []string          `json:"del,omitempty"`
}

// compactAfter is the journal length that triggers a snapshot rewrite.
const compactAfter = 128

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lf, err := os.OpenFile(prefix+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s := &fileStore{
		log:          log,
		lock:         lf,
		snapshotPath: prefix + ".state.json",
		journalPath:  prefix + ".journal.jsonl",
		auditPath:    prefix + ".audit.jsonl",
	}
	// fail early on a corrupt snapshot rather than on first use
	if err := s.withLock(unix.LOCK_SH, func() error {
		_, _, err := s.load()
		return err
	}); err != nil {
		_ = lf.Close()
		return nil, err
	}
	return s, nil
}

func (s *fileStore) withLock(how int, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fd := int(s.lock.Fd())
	for {
		err := unix.Flock(fd, how)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("flock: %w", err)
		}
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()
	return fn()
}

// load returns the current fields and the number of journal records.
func (s *fileStore) load() (map[string][]byte, int, error) {
	fields := map[string][]byte{}
	b, err := os.ReadFile(s.snapshotPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, 0, err
	case len(bytes.TrimSpace(b)) > 0:
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, 0, fmt.Errorf("decode snapshot %s: %w", s.snapshotPath, err)
		}
	}

	f, err := os.Open(s.journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return fields, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec journalRecord
		// a torn trailing line from a crash is skipped
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			s.log.Warn("skipping unreadable journal record", logx.Int("line", n+1), logx.Err(err))
			continue
		}
		for _, k := range rec.Del {
			delete(fields, k)
		}
		for k, v := range rec.Put {
			fields[k] = v
		}
		n++
	}
	return fields, n, sc.Err()
}

func (s *fileStore) Get(ctx context.Context, field string) ([]byte, bool, error) {
	var (
		v  []byte
		ok bool
	)
	err := s.withLock(unix.LOCK_SH, func() error {
		fields, _, err := s.load()
		if err != nil {
			return err
		}
		v, ok = fields[field]
		return nil
	})
	return v, ok, err
}

func (s *fileStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.withLock(unix.LOCK_EX, func() error {
		fields, records, err := s.load()
		if err != nil {
			return err
		}
		tx := newStaged(fields)
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.dirty() {
			return nil
		}
		rec := journalRecord{At: time.Now().UnixMilli(), Put: tx.writes}
		for k := range tx.deletes {
			rec.Del = append(rec.Del, k)
		}
		if err := appendJSONLine(s.journalPath, rec); err != nil {
			return err
		}
		if records+1 >= compactAfter {
			tx.applyTo(fields)
			if err := s.compact(fields); err != nil {
				s.log.Warn("journal compaction failed", logx.Err(err))
			}
		}
		return nil
	})
}

// compact writes fields as the new snapshot and empties the journal. A crash
// in between only replays records the snapshot already contains.
func (s *fileStore) compact(fields map[string][]byte) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	return os.Truncate(s.journalPath, 0)
}

func appendJSONLine(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return s.withLock(unix.LOCK_EX, func() error {
		return appendJSONLine(s.auditPath, e)
	})
}

func (s *fileStore) Audit(ctx context.Context, limit int) ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.withLock(unix.LOCK_SH, func() error {
		f, err := os.Open(s.auditPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		defer f.Close()
		var all []AuditEntry
		dec := json.NewDecoder(f)
		for {
			var e AuditEntry
			if err := dec.Decode(&e); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("decode audit: %w", err)
			}
			all = append(all, e)
		}
		out = newestFirst(all, limit)
		return nil
	})
	return out, err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Close()
}
