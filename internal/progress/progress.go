package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/cwygoda/fetchdata/internal/domain"
)

// DefaultRedrawInterval throttles live redraws caused by byte updates.
const DefaultRedrawInterval = 100 * time.Millisecond

// Snapshot is a point-in-time copy of a tracker's state.
type Snapshot struct {
	Label      string
	BytesDone  int64
	TotalBytes int64
	Active     bool
}

// Percent returns completion in [0, 100+]; 0 when the total is unknown.
func (s Snapshot) Percent() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	return float64(s.BytesDone) / float64(s.TotalBytes) * 100
}

// String formats the snapshot as a status line.
func (s Snapshot) String() string {
	if s.TotalBytes <= 0 {
		return fmt.Sprintf("%s: %s", s.Label, humanize.IBytes(uint64(s.BytesDone)))
	}
	return fmt.Sprintf("%s: %s / %s [%3.0f%%]", s.Label,
		humanize.IBytes(uint64(s.BytesDone)), humanize.IBytes(uint64(s.TotalBytes)), s.Percent())
}

// Reporter hands out one Tracker per batch and owns the output stream.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	live     bool
	interval time.Duration
	current  *Tracker
	lastLine string
}

// NewReporter creates a reporter writing to out. When out is a terminal the
// status line is redrawn in place; otherwise each label change is one line.
func NewReporter(out io.Writer) *Reporter {
	live := false
	if f, ok := out.(*os.File); ok {
		live = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, live: live, interval: DefaultRedrawInterval}
}

// SetLive forces live or line-per-label rendering.
func (r *Reporter) SetLive(live bool) {
	r.mu.Lock()
	r.live = live
	r.mu.Unlock()
}

// Begin starts a fresh tracker for a batch expecting totalBytes.
func (r *Reporter) Begin(totalBytes int64) domain.ProgressTracker {
	t := &Tracker{reporter: r, total: totalBytes}
	r.mu.Lock()
	r.current = t
	r.lastLine = ""
	r.mu.Unlock()
	return t
}

// Current returns the active tracker's snapshot, or a zero snapshot.
func (r *Reporter) Current() Snapshot {
	r.mu.Lock()
	t := r.current
	r.mu.Unlock()
	if t == nil {
		return Snapshot{}
	}
	return t.Snapshot()
}

// LogWriter returns a writer for log output that keeps the live line intact.
func (r *Reporter) LogWriter() io.Writer {
	return logWriter{r}
}

type logWriter struct{ r *Reporter }

func (w logWriter) Write(p []byte) (int, error) {
	r := w.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live || r.lastLine == "" {
		return r.out.Write(p)
	}
	fmt.Fprint(r.out, "\r\033[K")
	n, err := r.out.Write(p)
	fmt.Fprint(r.out, r.lastLine)
	return n, err
}

func (r *Reporter) draw(t *Tracker, line string, labelChanged, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != t {
		return
	}
	if r.live {
		fmt.Fprintf(r.out, "\r\033[K%s", line)
		r.lastLine = line
		if final {
			fmt.Fprintln(r.out)
			r.lastLine = ""
		}
		return
	}
	if labelChanged || final {
		fmt.Fprintln(r.out, line)
	}
}

func (r *Reporter) finish(t *Tracker) {
	r.mu.Lock()
	if r.current == t {
		r.current = nil
	}
	r.mu.Unlock()
}

// Tracker is the progress state of one batch. Fetchers and unpackers see it
// only through domain.Progress.
type Tracker struct {
	reporter *Reporter

	mu       sync.Mutex
	total    int64
	done     int64
	label    string
	lastDraw time.Time
	finished bool
}

// Add advances the byte counter.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.done += n
	now := time.Now()
	redraw := now.Sub(t.lastDraw) >= t.reporter.interval
	if redraw {
		t.lastDraw = now
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if redraw {
		t.reporter.draw(t, snap.String(), false, false)
	}
}

// SetLabel replaces the status label.
func (t *Tracker) SetLabel(label string) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.label = label
	t.lastDraw = time.Now()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.reporter.draw(t, snap.String(), true, false)
}

// Finish renders the final line and detaches the tracker from its reporter.
func (t *Tracker) Finish() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	snap := t.snapshotLocked()
	t.finished = true
	t.mu.Unlock()

	t.reporter.draw(t, snap.String(), false, true)
	t.reporter.finish(t)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Label:      t.label,
		BytesDone:  t.done,
		TotalBytes: t.total,
		Active:     !t.finished,
	}
}
