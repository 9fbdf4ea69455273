package lyrics

import (
	"fmt"
	"strings"

	"github.com/xeptore/beater/spotify/types"
)

// ToLRC renders one "[mm:ss]word" line per word. Every word of a line shares
// the line's timestamp, and milliseconds are truncated.
func ToLRC(doc types.LyricsDocument) string {
	var out []string
	for _, line := range doc.Lines {
		stamp := timestamp(line.TimeMS)
		for _, w := range line.Words {
			out = append(out, stamp+w)
		}
	}

	return strings.Join(out, "\n")
}

func timestamp(ms uint32) string {
	secs := ms / 1000
	return fmt.Sprintf("[%02d:%02d]", secs/60, secs%60)
}
