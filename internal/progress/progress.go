// Package progress wraps a terminal progress bar for long transfers.
package progress

import (
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/minio/pkg/console"
)

type Bar struct {
	*pb.ProgressBar
}

// New starts a bar counting to total. Output goes to w; a nil w disables drawing.
func New(total int64, w io.Writer) *Bar {
	console.SetColor("Bar", color.New(color.FgGreen, color.Bold))

	bar := pb.New64(total)
	bar.SetRefreshRate(125 * time.Millisecond)
	bar.SetTemplateString(`{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`)
	if w == nil {
		bar.Set(pb.Static, true)
		w = io.Discard
	}
	bar.SetWriter(w)
	bar.Start()
	return &Bar{ProgressBar: bar}
}

// SetCaption sets the text shown before the counters.
func (b *Bar) SetCaption(caption string) *Bar {
	b.ProgressBar.Set("prefix", console.Colorize("Bar", caption))
	return b
}
