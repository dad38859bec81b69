package answer

import (
	"regexp"
	"sort"
	"strconv"
)

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// ExtractCitations returns the distinct source numbers cited in the reply,
// ascending. Numbers outside [1, max] are discarded — models occasionally
// invent a source that was never offered.
func ExtractCitations(text string, max int) []int {
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > max {
			continue
		}
		seen[n] = true
	}
	if len(seen) == 0 {
		return nil
	}
	used := make([]int, 0, len(seen))
	for n := range seen {
		used = append(used, n)
	}
	sort.Ints(used)
	return used
}
