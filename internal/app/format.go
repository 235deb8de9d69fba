package app

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a model size the way the dashboard shows it, e.g.
// "4.7 GB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}
