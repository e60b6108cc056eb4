package outwriter

import (
	"os"

	"github.com/huangsam/recap/internal/contract"
	"golang.org/x/term"
)

// getMaxTitleWidth calculates the maximum width for entry titles in table output
// based on terminal width and the enabled columns.
func getMaxTitleWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // CI and pipes
		} else {
			termWidth = detectedWidth
		}
	}

	baseWidth := 40 // Rank + Category + Score + Label with borders
	if cfg.Detail {
		baseWidth += 45 // Impact + Conf + Authors + Chunks
	}

	available := termWidth - baseWidth
	if available < 20 {
		return 20
	}
	if available > 80 {
		return 80
	}
	return available
}
