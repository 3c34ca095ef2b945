package ignore

import "path"

// Filter combines the ignore matcher with the include and exclude globs of a
// scan. Include globs without a slash match the file's base name.
type Filter struct {
	matcher *Matcher
	include []string
	exclude *Matcher
}

func NewFilter(matcher *Matcher, include, exclude []string) *Filter {
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	cleaned := make([]string, 0, len(include))
	for _, pattern := range include {
		if pattern = normalizePath(pattern); pattern != "" {
			cleaned = append(cleaned, pattern)
		}
	}
	return &Filter{
		matcher: matcher,
		include: cleaned,
		exclude: NewRules(exclude),
	}
}

// SkipDir reports whether a directory must not be descended into.
func (f *Filter) SkipDir(relPath string) bool {
	return f.matcher.ShouldIgnore(relPath, true) || f.exclude.ShouldIgnore(relPath, true)
}

// Accept reports whether a file takes part in the scan.
func (f *Filter) Accept(relPath string) bool {
	relPath = normalizePath(relPath)
	if f.matcher.ShouldIgnore(relPath, false) || f.exclude.ShouldIgnore(relPath, false) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	base := path.Base(relPath)
	for _, pattern := range f.include {
		if MatchGlob(pattern, relPath) || MatchGlob(pattern, base) {
			return true
		}
	}
	return false
}
