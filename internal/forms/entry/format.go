package entry

import "fmt"

// FormatTotalSeconds renders elapsed seconds as HH:MM:SS with each
// part zero-padded to two digits. Negative input is coerced to zero.
func FormatTotalSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
