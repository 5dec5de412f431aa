package policy

import "strings"

// match reports whether r matches fullMethod and the length of the matched
// part, used to prefer longer matches of the same kind.
func (r *rule) match(fullMethod string) (bool, int) {
	switch r.kind {
	case kindExact:
		if fullMethod == r.pattern {
			return true, len(r.pattern)
		}
	case kindPrefix:
		if strings.HasPrefix(fullMethod, r.pattern) {
			return true, len(r.pattern)
		}
	case kindRegex:
		if loc := r.re.FindStringIndex(fullMethod); loc != nil {
			return true, loc[1] - loc[0]
		}
	}
	return false, 0
}
