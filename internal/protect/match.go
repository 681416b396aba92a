package protect

import (
	pathpkg "path"
	"strings"
)

// matchPattern matches a slash-separated path against a glob pattern.
// "**" spans any number of segments; single segments use path.Match
// semantics.
func matchPattern(path, pattern string) bool {
	return matchSegments(strings.Split(path, "/"), strings.Split(pattern, "/"))
}

func matchSegments(segs, pat []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(segs[i:], pat[1:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := pathpkg.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false
		}
		segs, pat = segs[1:], pat[1:]
	}
	return len(segs) == 0
}
