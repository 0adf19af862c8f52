package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// isoDurationRe matches ISO-8601 durations of the form P[nD][T[nH][nM][nS]].
// Days are folded into hours; seconds are accepted but not rendered.
var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// HumanizeDuration renders an ISO-8601 duration such as "PT1H30M" as
// "1 hr 30 min". It returns nil for unparseable input and for durations whose
// hour and minute components are both zero.
func HumanizeDuration(iso string) *string {
	m := isoDurationRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(iso)))
	if m == nil {
		return nil
	}

	days := atoi(m[1])
	hours := atoi(m[2]) + days*24
	minutes := atoi(m[3])

	var parts []string
	if hours > 0 {
		unit := "hr"
		if hours > 1 {
			unit = "hrs"
		}
		parts = append(parts, fmt.Sprintf("%d %s", hours, unit))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if len(parts) == 0 {
		return nil
	}
	out := strings.Join(parts, " ")
	return &out
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
