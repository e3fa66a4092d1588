package registry

import "strings"

// An override key is a pattern when any of its "_"-delimited tokens is "*".
// Keys without a "*" token select by full-id equality instead.
func IsPattern(key string) bool {
	for _, token := range strings.Split(key, "_") {
		if token == "*" {
			return true
		}
	}
	return false
}

// Match reports whether pattern selects id. The pattern's first token must
// equal the id's first token and the pattern's last token must equal the
// id's last token; tokens strictly between them are ignored entirely, on
// both sides, whatever their count. This is not a glob: a "*" in first or
// last position compares literally, and sensor ids never contain "*", so
// such a pattern matches nothing.
func Match(pattern, id string) bool {
	pt := strings.Split(pattern, "_")
	it := strings.Split(id, "_")
	return pt[0] == it[0] && pt[len(pt)-1] == it[len(it)-1]
}
