// Package replay persists emitted bars to plain CSV files and plays
// them back later as a local bar source, ahead of any broker data.
package replay

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/yanun0323/errors"

	"bridge/internal/model"
)

var header = []string{"time", "open", "high", "low", "close", "volume"}

// Writer appends bars to a CSV file, one record per bar. Records are
// flushed on every append so a crash loses at most the bar in flight.
type Writer struct {
	f *os.File
	w *csv.Writer
}

// NewWriter opens path for appending, creating it with a header line
// when empty.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open bar file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat bar file")
	}
	w := &Writer{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := w.w.Write(header); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "write header")
		}
	}
	return w, nil
}

// Append writes one bar record.
func (w *Writer) Append(bar model.Bar) error {
	rec := []string{
		bar.Time.Format(time.RFC3339),
		formatFloat(bar.Open),
		formatFloat(bar.High),
		formatFloat(bar.Low),
		formatFloat(bar.Close),
		formatFloat(bar.Volume),
	}
	if err := w.w.Write(rec); err != nil {
		return errors.Wrap(err, "write bar")
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return errors.Wrap(err, "flush bar")
	}
	return nil
}

// Close flushes pending records and closes the file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "flush bar")
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrap(err, "close bar file")
	}
	return nil
}

// Player replays a recorded bar file in file order. The feed drops any
// sample that does not advance the timeline, so an unsorted or
// overlapping file degrades gracefully.
type Player struct {
	bars []model.Bar
	next int
}

// Open reads an entire bar file into memory.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open bar file")
	}
	defer f.Close()
	return NewPlayer(f)
}

// NewPlayer decodes CSV bar records from r. A leading header line is
// skipped; any malformed record aborts the load.
func NewPlayer(r io.Reader) (*Player, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	p := &Player{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return p, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", line)
		}
		if line == 1 && rec[0] == header[0] {
			continue
		}
		bar, err := parseBar(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", line)
		}
		p.bars = append(p.bars, bar)
	}
}

// Next pops the next recorded bar. ok reports false once exhausted.
func (p *Player) Next() (model.Bar, bool) {
	if p.next >= len(p.bars) {
		return model.Bar{}, false
	}
	bar := p.bars[p.next]
	p.next++
	return bar, true
}

// Remaining reports how many bars are left to replay.
func (p *Player) Remaining() int { return len(p.bars) - p.next }

func parseBar(rec []string) (model.Bar, error) {
	t, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return model.Bar{}, errors.Wrap(err, "parse time")
	}
	var vals [5]float64
	for i, raw := range rec[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Bar{}, errors.Wrapf(err, "parse %q", raw)
		}
		vals[i] = v
	}
	return model.Bar{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
