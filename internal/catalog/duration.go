package catalog

import (
	"fmt"
	"strconv"
)

// ParseISODuration converts an ISO-8601 duration such as "PT1H2M3S" or "P1DT30M"
// into seconds. Live broadcasts report "P0D", which parses as zero.
func ParseISODuration(s string) (int, error) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	total := 0
	inTime := false
	num := ""
	seen := false
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
			num += string(c)
			continue
		case c == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		if num == "" {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		num = ""
		seen = true

		switch {
		case c == 'W' && !inTime:
			total += n * 7 * 86400
		case c == 'D' && !inTime:
			total += n * 86400
		case c == 'H' && inTime:
			total += n * 3600
		case c == 'M' && inTime:
			total += n * 60
		case c == 'S' && inTime:
			total += n
		default:
			return 0, fmt.Errorf("invalid duration %q: unsupported designator %q", s, c)
		}
	}
	if num != "" || !seen {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
