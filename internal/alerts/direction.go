package alerts

import (
	"regexp"
	"strings"
)

var (
	explicitDirection = regexp.MustCompile(`(?i)downtown|uptown`)
	// One or two words ending in "bound": "Manhattan bound",
	// "Coney Island-bound", "northbound".
	boundDirection = regexp.MustCompile(`(?i)\b(\w+\s?)(\w*-?)bound`)
)

var articles = map[string]bool{"the": true, "a": true, "an": true}

// Direction extracts the travel direction named in an alert heading.
// "uptown" and "downtown" win over any "...bound" phrase and are returned
// lowercased. A bound phrase never starts with an article. nil means the
// heading names no direction.
func Direction(heading string) *string {
	if m := explicitDirection.FindString(heading); m != "" {
		d := strings.ToLower(m)
		return &d
	}

	start := 0
	for start < len(heading) {
		loc := boundDirection.FindStringSubmatchIndex(heading[start:])
		if loc == nil {
			return nil
		}
		first := strings.TrimSpace(heading[start+loc[2] : start+loc[3]])
		if articles[strings.ToLower(first)] {
			// Resume right after the article so the following word can
			// start the phrase.
			start += loc[3]
			continue
		}
		d := heading[start+loc[0] : start+loc[1]]
		return &d
	}
	return nil
}
