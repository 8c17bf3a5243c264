package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"waterwise/internal/core"
)

// sumIntakeForDate adds up column D for rows whose column B equals date.
// Header rows and unparseable amounts are skipped. A row repeated under the
// same event ID (a retried append) counts once.
func sumIntakeForDate(values [][]any, date string) int {
	seen := map[string]struct{}{}
	sum := 0
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) < 4 || row[1] != date {
			continue
		}
		amount, ok := parseAmount(row[3])
		if !ok {
			continue
		}
		if id := row[0]; id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		sum += amount
	}
	return sum
}

const profileGoalKey = "goal"

// profileRowIndex returns the index of the first row keyed key, or -1.
func profileRowIndex(values [][]any, key string) int {
	for i, raw := range values {
		row := toStrings(raw)
		if len(row) > 0 && strings.EqualFold(row[0], key) {
			return i
		}
	}
	return -1
}

// parseGoal finds the row whose key is "goal" and validates its value.
func parseGoal(values [][]any) (int, error) {
	if idx := profileRowIndex(values, profileGoalKey); idx >= 0 {
		row := toStrings(values[idx])
		if len(row) < 2 {
			return 0, fmt.Errorf("%w: empty", core.ErrInvalidGoal)
		}
		goal, ok := parseAmount(row[1])
		if !ok {
			return 0, fmt.Errorf("%w: %q", core.ErrInvalidGoal, row[1])
		}
		return goal, nil
	}
	return 0, errors.New("goal not found in profile sheet")
}

// parseAmount accepts "250", "250.0" and "250 ml".
func parseAmount(s string) (int, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "ml"))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(f + 0.5), true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
