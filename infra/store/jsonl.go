package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/kilianp07/bayplan/core/logger"
	"github.com/kilianp07/bayplan/core/report"
)

// maxLine bounds one stored report. Reports carry the full assignment.
const maxLine = 16 << 20

// JSONLStore stores one report per line in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
	log  logger.Logger
}

// NewJSONLStore creates the file if needed. A nil logger discards output.
func NewJSONLStore(path string, log logger.Logger) (*JSONLStore, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path, log: log}, nil
}

func (s *JSONLStore) Append(ctx context.Context, rep report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	return enc.Encode(rep)
}

// Query returns matching reports in file order. Lines that do not decode
// are skipped with a warning.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []report.Report
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r report.Report
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			s.log.Warnf("store: skipping line %d of %s: %v", line, s.path, err)
			continue
		}
		if q.match(r) {
			res = append(res, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if q.Last > 0 && len(res) > q.Last {
		res = res[len(res)-q.Last:]
	}
	return res, nil
}

func (s *JSONLStore) Close() error { return nil }
