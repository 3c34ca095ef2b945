package graph

import (
	"path"
	"regexp"
	"strings"
)

type importSpec struct {
	alias string
	path  string
}

var (
	quotedPattern   = regexp.MustCompile(`(?:([A-Za-z_][A-Za-z0-9_]*)\s+)?["'<]([^"'<>]+)[">']`)
	pythonAsPattern = regexp.MustCompile(`^([A-Za-z0-9_.]+)(?:\s+as\s+([A-Za-z_][A-Za-z0-9_]*))?$`)
)

// importSpecs extracts module paths and the local names they bind from one
// import statement. It is a lexical heuristic; unknown shapes yield nothing.
func importSpecs(stmt string) []importSpec {
	stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
	switch {
	case strings.HasPrefix(stmt, "from "):
		return pythonFromSpecs(stmt)
	case strings.HasPrefix(stmt, "import ") && !strings.ContainsAny(stmt, `"'`):
		return dottedSpecs(strings.TrimPrefix(stmt, "import "))
	case strings.HasPrefix(stmt, "using "):
		return dottedSpecs(strings.TrimPrefix(stmt, "using "))
	case strings.HasPrefix(stmt, "use ") || strings.HasPrefix(stmt, "pub use "):
		return rustUseSpecs(stmt[strings.Index(stmt, "use ")+4:])
	}

	var specs []importSpec
	for _, match := range quotedPattern.FindAllStringSubmatch(stmt, -1) {
		target := strings.TrimSpace(match[2])
		alias := match[1]
		if alias == "" || alias == "from" || alias == "import" || alias == "include" {
			alias = defaultAliasFromImport(target)
		}
		specs = append(specs, importSpec{alias: alias, path: target})
	}
	return specs
}

func pythonFromSpecs(stmt string) []importSpec {
	rest := strings.TrimPrefix(stmt, "from ")
	idx := strings.Index(rest, " import ")
	if idx == -1 {
		return nil
	}
	module := pythonModulePath(strings.TrimSpace(rest[:idx]))
	names := strings.Trim(strings.TrimSpace(rest[idx+len(" import "):]), "()")

	specs := []importSpec{{alias: defaultAliasFromImport(module), path: module}}
	for _, name := range strings.Split(names, ",") {
		m := pythonAsPattern.FindStringSubmatch(strings.TrimSpace(name))
		if m == nil || m[1] == "*" {
			continue
		}
		alias := m[1]
		if m[2] != "" {
			alias = m[2]
		}
		specs = append(specs,
			importSpec{alias: alias, path: path.Join(module, m[1])},
			importSpec{alias: alias, path: module},
		)
	}
	return specs
}

func pythonModulePath(module string) string {
	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	rest := strings.ReplaceAll(module[dots:], ".", "/")
	switch {
	case dots == 0:
		return rest
	case dots == 1:
		return "./" + rest
	default:
		return strings.Repeat("../", dots-1) + rest
	}
}

func dottedSpecs(list string) []importSpec {
	list = strings.TrimPrefix(strings.TrimSpace(list), "static ")
	var specs []importSpec
	for _, item := range strings.Split(list, ",") {
		m := pythonAsPattern.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			continue
		}
		target := strings.ReplaceAll(m[1], ".", "/")
		alias := defaultAliasFromImport(target)
		if m[2] != "" {
			alias = m[2]
		}
		specs = append(specs, importSpec{alias: alias, path: target})
	}
	return specs
}

func rustUseSpecs(tree string) []importSpec {
	tree = strings.TrimSpace(tree)
	if idx := strings.Index(tree, "{"); idx != -1 {
		tree = tree[:idx]
	}
	tree = strings.TrimSuffix(tree, "::")
	for _, prefix := range []string{"crate::", "self::", "super::"} {
		tree = strings.TrimPrefix(tree, prefix)
	}
	if tree == "" {
		return nil
	}
	target := strings.ReplaceAll(tree, "::", "/")
	return []importSpec{{alias: defaultAliasFromImport(target), path: target}}
}

func buildImportAliasCandidates(snap *Snapshot) map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	allFiles := snap.Paths()

	for _, source := range allFiles {
		entry := snap.Files[source]
		if len(entry.Imports) == 0 {
			continue
		}

		sourceCandidates := make(map[string][]string)
		for _, stmt := range entry.Imports {
			for _, spec := range importSpecs(stmt) {
				if spec.alias == "" {
					continue
				}
				candidates := matchImportCandidates(source, spec.path, allFiles)
				if len(candidates) == 0 {
					continue
				}
				sourceCandidates[spec.alias] = dedupeAndSort(append(sourceCandidates[spec.alias], candidates...))
			}
		}
		if len(sourceCandidates) > 0 {
			out[source] = sourceCandidates
		}
	}

	return out
}

func matchImportCandidates(sourceFile, importPath string, allFiles []string) []string {
	importPath = strings.TrimSpace(strings.Trim(importPath, `"'`))
	if importPath == "" {
		return nil
	}

	matches := make([]string, 0)
	for _, target := range allFiles {
		if target == sourceFile {
			continue
		}
		if importMatchesFile(sourceFile, importPath, target) {
			matches = append(matches, target)
		}
	}
	return matches
}

func importMatchesFile(sourceFile, importPath, targetFile string) bool {
	targetNoExt := strings.TrimSuffix(targetFile, path.Ext(targetFile))
	targetDir := path.Dir(targetFile)
	targetBase := strings.TrimSuffix(path.Base(targetFile), path.Ext(targetFile))

	if strings.HasPrefix(importPath, ".") {
		resolved := path.Clean(path.Join(path.Dir(sourceFile), importPath))
		resolvedNoExt := strings.TrimSuffix(resolved, path.Ext(resolved))
		return resolved == targetNoExt || resolvedNoExt == targetNoExt || resolved == targetDir ||
			path.Join(resolved, "index") == targetNoExt || path.Join(resolved, "__init__") == targetNoExt
	}

	normalizedImport := strings.TrimPrefix(importPath, "/")
	normalizedImport = strings.TrimSuffix(normalizedImport, path.Ext(normalizedImport))

	return normalizedImport == targetNoExt ||
		normalizedImport == targetDir ||
		normalizedImport == targetBase ||
		strings.HasSuffix(normalizedImport, "/"+targetNoExt) ||
		(targetDir != "." && strings.HasSuffix(normalizedImport, "/"+targetDir)) ||
		strings.HasSuffix(targetNoExt, "/"+normalizedImport) ||
		strings.HasSuffix(targetDir, "/"+normalizedImport)
}

func defaultAliasFromImport(importPath string) string {
	importPath = strings.TrimSpace(strings.Trim(importPath, `"'`))
	if importPath == "" {
		return ""
	}
	segments := strings.Split(importPath, "/")
	last := strings.TrimSpace(segments[len(segments)-1])
	return strings.TrimSuffix(last, path.Ext(last))
}
