package storage

import (
	"bufio"
	"io"
	"strings"

	"envnode-go/errcode"
	"envnode-go/types"
	"envnode-go/x/ring"
	"envnode-go/x/strconvx"
	"envnode-go/x/strx"
)

// DefaultFile is the summary log name on the device store.
const DefaultFile = "/summary.txt"

// Log is an append-only, line-per-record summary history.
type Log struct {
	fs   FS
	name string
}

// NewLog binds a log to a file on fs. An empty name selects DefaultFile.
func NewLog(fs FS, name string) *Log {
	return &Log{fs: fs, name: strx.Coalesce(name, DefaultFile)}
}

func (l *Log) Name() string { return l.name }

// Append writes one record line. The store is opened and closed per call so
// a power cut never leaves a half-open handle. Failures are returned as
// storage codes for the caller to report; they are never fatal.
func (l *Log) Append(record string) error {
	w, err := l.fs.OpenAppend(l.name)
	if err != nil {
		return errcode.Wrap(errcode.StorageOpen, "append "+l.name, err)
	}
	_, werr := io.WriteString(w, strx.TrimEOL(record)+"\n")
	cerr := w.Close()
	if werr != nil {
		return errcode.Wrap(errcode.StorageWrite, "append "+l.name, werr)
	}
	if cerr != nil {
		return errcode.Wrap(errcode.StorageWrite, "close "+l.name, cerr)
	}
	return nil
}

// AppendSummary formats s and appends it.
func (l *Log) AppendSummary(s types.Summary) error { return l.Append(FormatRecord(s)) }

// ReadLastK returns up to k most recent records, oldest first. The whole
// file is scanned once while only k lines are held. A missing store yields an
// empty result and errcode.NotFound.
func (l *Log) ReadLastK(k int) ([]string, error) {
	if k <= 0 {
		return []string{}, nil
	}
	if !l.fs.Exists(l.name) {
		return []string{}, errcode.Wrap(errcode.NotFound, "read "+l.name, nil)
	}
	r, err := l.fs.OpenRead(l.name)
	if err != nil {
		return []string{}, errcode.Wrap(errcode.StorageRead, "read "+l.name, err)
	}
	defer r.Close()

	last := ring.New[string](k)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		last.Push(line)
	}
	if err := sc.Err(); err != nil {
		return last.Items(), errcode.Wrap(errcode.StorageRead, "scan "+l.name, err)
	}
	return last.Items(), nil
}

// FormatRecord renders a summary line: "T:20.45,H:45.10", or "T:20.45" when
// the node has no humidity sensor.
func FormatRecord(s types.Summary) string {
	line := "T:" + strconvx.FormatFloat(s.AvgTemperature, 'f', 2, 64)
	if s.HasHumidity {
		line += ",H:" + strconvx.FormatFloat(s.AvgHumidity, 'f', 2, 64)
	}
	return line
}

// ParseRecord is the inverse of FormatRecord.
func ParseRecord(line string) (types.Summary, error) {
	var s types.Summary
	var seenT bool
	for _, part := range strings.Split(strings.TrimSpace(line), ",") {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			return types.Summary{}, errcode.Wrap(errcode.StorageRead, "parse record", nil)
		}
		v, err := strconvx.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return types.Summary{}, errcode.Wrap(errcode.StorageRead, "parse record", err)
		}
		switch strings.TrimSpace(key) {
		case "T":
			s.AvgTemperature, seenT = v, true
		case "H":
			s.AvgHumidity, s.HasHumidity = v, true
		}
	}
	if !seenT {
		return types.Summary{}, errcode.Wrap(errcode.StorageRead, "parse record", nil)
	}
	return s, nil
}
