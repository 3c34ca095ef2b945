package ignore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultRules are always applied before repository and user rules.
var DefaultRules = []string{
	".*/",
	".codegraph/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
}

type rule struct {
	pattern  string
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
}

// Matcher applies gitignore-like rules with "last rule wins" behavior.
type Matcher struct {
	defaults []rule
	git      *gitignore.GitIgnore
	rules    []rule
}

// NewMatcher builds a matcher from user-provided ignore lines.
// Default excludes are prepended and can be overridden by user negation rules.
func NewMatcher(userRules []string) *Matcher {
	return &Matcher{
		defaults: parseRules(DefaultRules),
		rules:    parseRules(userRules),
	}
}

// NewRules builds a matcher from lines only, without default excludes.
func NewRules(lines []string) *Matcher {
	return &Matcher{rules: parseRules(lines)}
}

// WithGitignore loads root/.gitignore, if present, between the default and
// user rules.
func (m *Matcher) WithGitignore(root string) (*Matcher, error) {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}
		return nil, err
	}
	git, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, err
	}
	out := *m
	out.git = git
	return &out, nil
}

// ShouldIgnore returns true when relPath should be excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" || relPath == "." {
		return false
	}

	ignored := applyRules(false, m.defaults, relPath, isDir)
	if m.git != nil {
		candidate := relPath
		if isDir {
			candidate += "/"
		}
		if m.git.MatchesPath(candidate) {
			ignored = true
		}
	}
	return applyRules(ignored, m.rules, relPath, isDir)
}

func applyRules(ignored bool, rules []rule, relPath string, isDir bool) bool {
	for _, rule := range rules {
		if ruleMatches(rule, relPath, isDir) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func parseRules(lines []string) []rule {
	rules := make([]rule, 0, len(lines))
	for _, line := range lines {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}
	return rules
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	parsed := rule{}
	if strings.HasPrefix(line, "!") {
		parsed.negated = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasPrefix(line, "/") {
		parsed.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.HasSuffix(line, "/") {
		parsed.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	re, err := compileGlob(line)
	if err != nil {
		return rule{}, false
	}
	parsed.pattern = line
	parsed.re = re
	return parsed, true
}

func ruleMatches(rule rule, relPath string, isDir bool) bool {
	if rule.dirOnly {
		return matchDirectoryPattern(rule, relPath, isDir)
	}

	if rule.anchored {
		return rule.re.MatchString(relPath)
	}

	if strings.Contains(rule.pattern, "/") {
		if rule.re.MatchString(relPath) {
			return true
		}
		parts := strings.Split(relPath, "/")
		for i := 1; i < len(parts); i++ {
			if rule.re.MatchString(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range strings.Split(relPath, "/") {
		if rule.re.MatchString(segment) {
			return true
		}
	}
	return false
}

// matchDirectoryPattern matches a directory rule against every directory on
// relPath, so files inside an ignored directory are ignored too.
func matchDirectoryPattern(rule rule, relPath string, isDir bool) bool {
	dirs := strings.Split(relPath, "/")
	if !isDir {
		dirs = dirs[:len(dirs)-1]
	}

	for i := range dirs {
		if rule.anchored || strings.Contains(rule.pattern, "/") {
			if rule.re.MatchString(strings.Join(dirs[:i+1], "/")) {
				return true
			}
			continue
		}
		if rule.re.MatchString(dirs[i]) {
			return true
		}
	}
	return false
}

// MatchGlob reports whether value matches a single glob pattern.
func MatchGlob(pattern, value string) bool {
	re, err := compileGlob(normalizePath(pattern))
	return err == nil && re.MatchString(normalizePath(value))
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^" + globToRegex(pattern) + "$")
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]

		if ch == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				// "**/" also matches zero directories.
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
			continue
		}

		if ch == '?' {
			b.WriteString("[^/]")
			continue
		}

		if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
