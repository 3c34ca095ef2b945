package state

import (
	"sort"
	"time"

	"github.com/skelly-dev/codegraph/internal/parser"
)

const (
	CurrentStateVersion  = "3"
	CurrentParserVersion = "tree-sitter-tags-v1"
)

// FileInfo is the filesystem metadata compared before any file is hashed.
type FileInfo struct {
	ModTime time.Time
	Size    int64
}

// FileState tracks the state of a single file
type FileState struct {
	Hash         string          `json:"hash"`
	Language     string          `json:"language,omitempty"`
	ModTime      time.Time       `json:"mod_time"`
	Size         int64           `json:"size"`
	Symbols      []parser.Symbol `json:"symbols,omitempty"`
	Edges        []parser.Edge   `json:"edges,omitempty"`
	Imports      []string        `json:"imports,omitempty"`
	Skipped      int             `json:"skipped,omitempty"`
	HasError     bool            `json:"has_error,omitempty"`
	Failure      string          `json:"failure,omitempty"` // set when the file is indexed with zero symbols
	Dependencies []string        `json:"dependencies,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// State tracks the state of all files for incremental updates
type State struct {
	Version       string               `json:"version"`
	ParserVersion string               `json:"parser_version,omitempty"`
	Root          string               `json:"root"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Files         map[string]FileState `json:"files"`
}

// NewState creates a new empty state
func NewState(root string) *State {
	return &State{
		Version:       CurrentStateVersion,
		ParserVersion: CurrentParserVersion,
		Root:          root,
		Files:         make(map[string]FileState),
	}
}

// Compatible reports whether s was produced by this state and parser version.
func (s *State) Compatible() bool {
	return s.Version == CurrentStateVersion && s.ParserVersion == CurrentParserVersion
}

// SetFileData stores extracted file records for incremental updates.
func (s *State) SetFileData(file parser.FileSymbols, info FileInfo) {
	s.Files[file.Path] = FileState{
		Hash:      file.Hash,
		Language:  file.Language,
		ModTime:   info.ModTime,
		Size:      info.Size,
		Symbols:   file.Symbols,
		Edges:     file.Edges,
		Imports:   file.Imports,
		Skipped:   file.Skipped,
		HasError:  file.HasError,
		UpdatedAt: time.Now(),
	}
	s.UpdatedAt = time.Now()
}

// SetFailed records a file that could not be read or parsed. It stays in the
// index with zero symbols until its content changes.
func (s *State) SetFailed(file, language, hash string, info FileInfo, message string) {
	s.Files[file] = FileState{
		Hash:      hash,
		Language:  language,
		ModTime:   info.ModTime,
		Size:      info.Size,
		Failure:   message,
		UpdatedAt: time.Now(),
	}
	s.UpdatedAt = time.Now()
}

// Touch refreshes filesystem metadata for a file whose content is unchanged.
func (s *State) Touch(file string, info FileInfo) {
	fs, ok := s.Files[file]
	if !ok {
		return
	}
	fs.ModTime = info.ModTime
	fs.Size = info.Size
	s.Files[file] = fs
}

// GetFileHash returns the stored hash for a file
func (s *State) GetFileHash(file string) (string, bool) {
	fs, ok := s.Files[file]
	if !ok {
		return "", false
	}
	return fs.Hash, true
}

// HasChanged returns true if the file hash differs from stored
func (s *State) HasChanged(file, currentHash string) bool {
	storedHash, ok := s.GetFileHash(file)
	if !ok {
		return true // New file
	}
	return storedHash != currentHash
}

// NeedsDigest reports whether a file's metadata no longer matches what was
// recorded, so its content must be hashed to decide whether it changed.
func (s *State) NeedsDigest(file string, info FileInfo) bool {
	fs, ok := s.Files[file]
	if !ok {
		return true
	}
	return fs.Size != info.Size || !fs.ModTime.Equal(info.ModTime)
}

// RemoveFile removes a file from state tracking
func (s *State) RemoveFile(file string) {
	delete(s.Files, file)
}

// ChangedFiles returns files that have changed based on provided hashes
func (s *State) ChangedFiles(currentHashes map[string]string) []string {
	changed := make([]string, 0)

	// Check for new or modified files
	for file, hash := range currentHashes {
		if s.HasChanged(file, hash) {
			changed = append(changed, file)
		}
	}

	sort.Strings(changed)
	return changed
}

// DeletedFiles returns files that no longer exist
func (s *State) DeletedFiles(currentFiles map[string]bool) []string {
	deleted := make([]string, 0)

	for file := range s.Files {
		if !currentFiles[file] {
			deleted = append(deleted, file)
		}
	}

	sort.Strings(deleted)
	return deleted
}

// SetDependencies records, per file, the files its resolved edges point into.
func (s *State) SetDependencies(deps map[string][]string) {
	for file, fs := range s.Files {
		fs.Dependencies = deps[file]
		s.Files[file] = fs
	}
}

// ImpactedFiles returns changed/deleted files plus reverse dependency closure.
func (s *State) ImpactedFiles(changedFiles, deletedFiles []string) []string {
	reverse := make(map[string][]string)
	for file, fileState := range s.Files {
		for _, dep := range fileState.Dependencies {
			reverse[dep] = append(reverse[dep], file)
		}
	}

	impacted := make(map[string]bool)
	queue := make([]string, 0, len(changedFiles)+len(deletedFiles))
	for _, file := range changedFiles {
		if !impacted[file] {
			impacted[file] = true
			queue = append(queue, file)
		}
	}
	for _, file := range deletedFiles {
		if !impacted[file] {
			impacted[file] = true
			queue = append(queue, file)
		}
	}

	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		for _, depender := range reverse[file] {
			if impacted[depender] {
				continue
			}
			impacted[depender] = true
			queue = append(queue, depender)
		}
	}

	out := make([]string, 0, len(impacted))
	for file := range impacted {
		out = append(out, file)
	}
	sort.Strings(out)
	return out
}

// Records returns the per-file extraction records sorted by path.
func (s *State) Records() []parser.FileSymbols {
	out := make([]parser.FileSymbols, 0, len(s.Files))
	for path, fs := range s.Files {
		out = append(out, parser.FileSymbols{
			Path:     path,
			Language: fs.Language,
			Symbols:  fs.Symbols,
			Edges:    fs.Edges,
			Imports:  fs.Imports,
			Hash:     fs.Hash,
			Skipped:  fs.Skipped,
			HasError: fs.HasError,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// Issues returns one error issue per file recorded as failed.
func (s *State) Issues() []parser.ParseIssue {
	issues := make([]parser.ParseIssue, 0)
	for path, fs := range s.Files {
		if fs.Failure == "" {
			continue
		}
		issues = append(issues, parser.ParseIssue{
			File:     path,
			Language: fs.Language,
			Severity: "error",
			Message:  fs.Failure,
		})
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].File < issues[j].File
	})
	return issues
}

// Clone copies the file table. Record slices are shared; they are never
// mutated after extraction.
func (s *State) Clone() *State {
	out := *s
	out.Files = make(map[string]FileState, len(s.Files))
	for path, fs := range s.Files {
		out.Files[path] = fs
	}
	return &out
}
