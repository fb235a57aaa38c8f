// Package utils holds small helpers shared by handlers and clients.
package utils

import "strings"

// SplitList splits a comma-separated query value into trimmed, non-empty,
// de-duplicated items in first-seen order. upper normalizes case (symbols,
// event types). Returns nil when nothing remains.
func SplitList(s string, upper bool) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		item := strings.TrimSpace(v)
		if upper {
			item = strings.ToUpper(item)
		}
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}
