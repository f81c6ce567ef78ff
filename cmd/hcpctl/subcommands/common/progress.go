package common

import (
	"fmt"
	"io"

	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"

	pb "github.com/cheggaaa/pb/v3"
)

// SyncProgress shows the progress of an overlay sync as a bar.
type SyncProgress struct {
	bar *pb.ProgressBar
}

// StartSyncProgress starts a bar writing to w. Pass io.Discard to hide it.
func StartSyncProgress(w io.Writer, prefix string) (*SyncProgress, error) {
	bar := pb.New(0)
	bar.SetWriter(w)
	bar.Set("prefix", prefix)
	if err := bar.Err(); err != nil {
		return nil, err
	}
	bar.Start()
	return &SyncProgress{bar: bar}, nil
}

// Options sets the total when the sync starts and counts synced entries.
func (p *SyncProgress) Options() []overlay.Option {
	return []overlay.Option{
		overlay.WithSyncStart(func(total int) { p.bar.SetTotal(int64(total)) }),
		overlay.WithObserver(func(overlay.Event) { p.bar.Increment() }),
	}
}

// Finish fills the bar with the final count and stops it.
func (p *SyncProgress) Finish(stats overlay.Stats) {
	p.bar.SetTotal(int64(stats.Total()))
	p.bar.SetCurrent(int64(stats.Total()))
	p.bar.Finish()
}

// PrintStats writes the one-line summary of a sync.
func PrintStats(w io.Writer, stats overlay.Stats) error {
	_, err := io.WriteString(w, statsLine(stats))
	return err
}

func statsLine(stats overlay.Stats) string {
	return fmt.Sprintf(
		"created: %d, replaced: %d, skipped: %d\n",
		stats.Created, stats.Replaced, stats.Skipped,
	)
}
