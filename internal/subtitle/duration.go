package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// FormatDuration renders a second count as a short human-readable label.
// Under a minute the value keeps two decimals ("3.14 sec"); from one minute
// up it is split into whole minutes and whole seconds with the sub-second
// remainder dropped ("1 min 5 sec"). A zero remainder is omitted entirely,
// so 60.0 renders as "1 min" with no "0 sec" part — this mirrors the
// long-observed output and is kept as-is. Minutes do not roll over into
// hours. Negative input is clamped to zero.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%.2f sec", seconds)
	}
	minutes := int(seconds / 60)
	remaining := int(math.Mod(seconds, 60))

	var parts []string
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if remaining > 0 {
		parts = append(parts, fmt.Sprintf("%d sec", remaining))
	}
	return strings.Join(parts, " ")
}
