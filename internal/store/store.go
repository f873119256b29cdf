// Package store implements the append-only, shard-rotating decision
// record writer (C5) and its tolerant loader (C6).
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"decisioncore/internal/canon"
	"decisioncore/internal/record"
)

const shardPrefix = "decision_records_"
const shardSuffix = ".jsonl"

var shardNamePattern = regexp.MustCompile(`^decision_records_(\d{4,})\.jsonl$`)

// DefaultRotateThreshold is the number of records after which Append
// rotates to a new shard automatically, absent an explicit Rotate call.
const DefaultRotateThreshold = 50000

// Writer owns the active shard file handle and the in-memory seq
// counter for one run directory. Exactly one Writer may be open on a
// run directory at a time; callers coordinate that externally.
type Writer struct {
	dir             string
	runID           string
	rotateThreshold int

	file        *os.File
	shardIndex  int
	shardCount  int
	nextSeq     int
}

// Open creates or opens the run directory, determines the active shard
// (newest by suffix), and positions the writer to append after it.
// startSeq seeds the seq counter only when the directory is empty; a
// non-empty directory always re-derives the next seq from the tail of
// the newest shard via InferNextSeq.
func Open(outPath, runID string, startSeq int) (*Writer, error) {
	if err := os.MkdirAll(outPath, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating run directory: %w", err)
	}

	w := &Writer{dir: outPath, runID: runID, rotateThreshold: DefaultRotateThreshold}

	idx, err := newestShardIndex(outPath)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		idx = 0
		w.nextSeq = startSeq
		if err := w.openShard(idx); err != nil {
			return nil, err
		}
		return w, nil
	}

	shardPath := shardPath(outPath, idx)
	nextSeq, err := InferNextSeq(shardPath)
	if err != nil {
		return nil, err
	}
	w.nextSeq = nextSeq

	count, err := countLines(shardPath)
	if err != nil {
		return nil, err
	}
	w.shardCount = count

	if err := w.openShard(idx); err != nil {
		return nil, err
	}
	// A crash mid-append can leave an unterminated fragment at the tail;
	// end it so the next record starts on its own line.
	data, err := os.ReadFile(shardPath)
	if err != nil {
		return nil, fmt.Errorf("store: reading shard tail: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := w.file.Write([]byte("\n")); err != nil {
			return nil, fmt.Errorf("store: terminating partial line: %w", err)
		}
	}
	return w, nil
}

func (w *Writer) openShard(idx int) error {
	f, err := os.OpenFile(shardPath(w.dir, idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: opening shard: %w", err)
	}
	w.file = f
	w.shardIndex = idx
	return nil
}

func shardPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%04d%s", shardPrefix, idx, shardSuffix))
}

// Append assembles a record from the given decision inputs, encodes it
// canonically, writes exactly one newline-terminated line, and flushes
// it to durable storage before returning. seq is advanced only on
// success.
func (w *Writer) Append(p record.Params) (record.Record, error) {
	p.Seq = w.nextSeq
	p.RunID = w.runID

	rec, err := record.Assemble(p)
	if err != nil {
		return record.Record{}, fmt.Errorf("store: assembling record: %w", err)
	}

	line, err := canon.Encode(record.ToCanonical(rec))
	if err != nil {
		return record.Record{}, fmt.Errorf("store: encoding record: %w", err)
	}

	if _, err := w.file.Write(line); err != nil {
		return record.Record{}, fmt.Errorf("store: writing record: %w", err)
	}
	if _, err := w.file.Write([]byte("\n")); err != nil {
		return record.Record{}, fmt.Errorf("store: writing record: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return record.Record{}, fmt.Errorf("store: syncing shard: %w", err)
	}

	w.nextSeq++
	w.shardCount++

	if w.shardCount >= w.rotateThreshold {
		if err := w.Rotate(); err != nil {
			return rec, err
		}
	}

	return rec, nil
}

// Rotate closes the current shard and opens the next one in ascending
// suffix order.
func (w *Writer) Rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("store: closing shard: %w", err)
	}
	w.shardCount = 0
	return w.openShard(w.shardIndex + 1)
}

// Close closes the active shard file handle.
func (w *Writer) Close() error {
	return w.file.Close()
}

// NextSeq reports the seq the next Append call will assign.
func (w *Writer) NextSeq() int { return w.nextSeq }

func newestShardIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1, fmt.Errorf("store: reading run directory: %w", err)
	}
	best := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := shardNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var v json.RawMessage
		if json.Unmarshal(sc.Bytes(), &v) != nil {
			continue
		}
		count++
	}
	return count, nil
}

// InferNextSeq scans every line of the shard at path, skipping
// malformed or truncated JSON lines, and returns (last_valid_seq + 1)
// where last_valid_seq is the seq of the last line that parses, or 0 if
// no valid record is found (including when path does not exist).
func InferNextSeq(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: opening shard for seq inference: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lastSeq := -1
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var partial struct {
			Seq *int `json:"seq"`
		}
		if err := json.Unmarshal(line, &partial); err != nil || partial.Seq == nil {
			continue
		}
		lastSeq = *partial.Seq
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("store: scanning shard for seq inference: %w", err)
	}
	if lastSeq < 0 {
		return 0, nil
	}
	return lastSeq + 1, nil
}

// Load streams path line-by-line, parsing each non-empty line as a
// decision record. Parse failures increment errorCount and are
// skipped; Load never aborts on a bad line.
func Load(path string) (records []record.Record, errorCount int, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, 0, fmt.Errorf("store: opening shard: %w", openErr)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			errorCount++
			continue
		}
		if missingRequiredFields(rec) {
			errorCount++
			continue
		}
		records = append(records, rec)
	}
	if scanErr := sc.Err(); scanErr != nil {
		return records, errorCount, fmt.Errorf("store: scanning shard: %w", scanErr)
	}
	return records, errorCount, nil
}

func missingRequiredFields(r record.Record) bool {
	return r.SchemaVersion == "" || r.RunID == "" || r.TsUTC == "" ||
		r.Timeframe == "" || r.RiskState == "" || r.MarketStateHash == "" ||
		r.InputsDigest == "" || r.Hashes.InputsHash == "" ||
		r.Hashes.CoreHash == "" || r.Hashes.ContentHash == ""
}

// LoadRun loads every shard in dir in ascending shard order,
// concatenating results.
func LoadRun(dir string) (records []record.Record, errorCount int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("store: reading run directory: %w", err)
	}

	var shards []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if shardNamePattern.MatchString(e.Name()) {
			shards = append(shards, e.Name())
		}
	}
	sort.Strings(shards)

	for _, name := range shards {
		recs, errs, loadErr := Load(filepath.Join(dir, name))
		if loadErr != nil {
			return records, errorCount, loadErr
		}
		records = append(records, recs...)
		errorCount += errs
	}
	return records, errorCount, nil
}
