package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestSnapshot_String(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			name: "known total",
			snap: Snapshot{Label: "Downloading a.tgz", BytesDone: 512, TotalBytes: 2048},
			want: "Downloading a.tgz: 512 B / 2.0 KiB [ 25%]",
		},
		{
			name: "unknown total",
			snap: Snapshot{Label: "Downloading b.npz", BytesDone: 1024},
			want: "Downloading b.npz: 1.0 KiB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Percent(t *testing.T) {
	if got := (Snapshot{BytesDone: 150, TotalBytes: 150}).Percent(); got != 100 {
		t.Errorf("Percent() = %v, want 100", got)
	}
	if got := (Snapshot{BytesDone: 150}).Percent(); got != 0 {
		t.Errorf("Percent() with unknown total = %v, want 0", got)
	}
}

func TestTracker_AccumulatesBytes(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)

	tracker := r.Begin(150).(*Tracker)
	tracker.SetLabel("Downloading a.tgz")
	tracker.Add(100)
	tracker.Add(50)

	snap := r.Current()
	if snap.BytesDone != 150 || snap.TotalBytes != 150 {
		t.Errorf("snapshot = %+v, want 150/150", snap)
	}
	if snap.Label != "Downloading a.tgz" {
		t.Errorf("Label = %q", snap.Label)
	}
	if !snap.Active {
		t.Error("Active = false before Finish")
	}
}

func TestReporter_LinePerLabel(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)

	tracker := r.Begin(100)
	tracker.SetLabel("Downloading a.tgz")
	tracker.Add(100)
	tracker.SetLabel("Downloaded a.tgz")
	tracker.Finish()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "Downloading a.tgz: 0 B / 100 B [  0%]" {
		t.Errorf("line[0] = %q", lines[0])
	}
	if lines[1] != "Downloaded a.tgz: 100 B / 100 B [100%]" {
		t.Errorf("line[1] = %q", lines[1])
	}
	if strings.Contains(out.String(), "\r") {
		t.Error("non-terminal output contains carriage returns")
	}
}

func TestReporter_LiveRedraw(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)
	r.SetLive(true)

	tracker := r.Begin(10)
	tracker.SetLabel("Downloading a.tgz")
	tracker.Finish()

	got := out.String()
	if !strings.HasPrefix(got, "\r\033[KDownloading a.tgz") {
		t.Errorf("output = %q, want carriage-return redraw", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("output = %q, want trailing newline after Finish", got)
	}
}

func TestReporter_LogWriterKeepsLiveLine(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)
	r.SetLive(true)

	tracker := r.Begin(10)
	tracker.SetLabel("Downloading a.tgz")
	out.Reset()

	if _, err := r.LogWriter().Write([]byte("entry a.tgz: downloaded\n")); err != nil {
		t.Fatal(err)
	}

	want := "\r\033[Kentry a.tgz: downloaded\nDownloading a.tgz: 0 B / 10 B [  0%]"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestReporter_FinishDetaches(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)

	first := r.Begin(100)
	first.Add(100)
	first.Finish()

	if snap := r.Current(); snap != (Snapshot{}) {
		t.Errorf("Current() after Finish = %+v, want zero", snap)
	}

	// Updates after Finish are ignored.
	first.Add(10)
	if got := first.(*Tracker).Snapshot().BytesDone; got != 100 {
		t.Errorf("BytesDone = %d, want 100", got)
	}

	second := r.Begin(5)
	if snap := r.Current(); snap.BytesDone != 0 || snap.TotalBytes != 5 {
		t.Errorf("second batch snapshot = %+v, want fresh state", snap)
	}
	second.Finish()
}

func TestReporter_StaleTrackerDoesNotDraw(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)

	old := r.Begin(1)
	r.Begin(2)
	out.Reset()

	old.SetLabel("stale")
	if out.Len() != 0 {
		t.Errorf("stale tracker wrote %q", out.String())
	}
}
