package util

import "fmt"

var units = []string{"KB", "MB", "GB", "TB"}

// Human formats a byte count with a binary unit suffix.
func Human(n int64) string {
	if n < 1<<10 {
		return fmt.Sprintf("%d B", n)
	}

	v := float64(n) / (1 << 10)
	i := 0
	for v >= 1<<10 && i < len(units)-1 {
		v /= 1 << 10
		i++
	}

	return fmt.Sprintf("%.2f %s", v, units[i])
}
