package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/skelly-dev/codegraph/internal/parser"
)

func TestChangedAndDeletedFiles(t *testing.T) {
	s := NewState("/repo")
	setHash(s, "a.go", "a1")
	setHash(s, "b.go", "b1")
	setHash(s, "c.go", "c1")

	changed := s.ChangedFiles(map[string]string{
		"a.go": "a1",
		"b.go": "b2",
		"d.go": "d1",
	})
	expectSet(t, changed, []string{"b.go", "d.go"})

	deleted := s.DeletedFiles(map[string]bool{
		"a.go": true,
		"b.go": true,
		"d.go": true,
	})
	expectSet(t, deleted, []string{"c.go"})
}

func TestImpactedFilesClosure(t *testing.T) {
	s := NewState("/repo")
	s.Files["a.go"] = FileState{Dependencies: []string{"b.go"}}
	s.Files["c.go"] = FileState{Dependencies: []string{"a.go"}}
	s.Files["d.go"] = FileState{Dependencies: []string{"x.go"}}

	impacted := s.ImpactedFiles([]string{"b.go"}, nil)
	want := []string{"a.go", "b.go", "c.go"}
	if !reflect.DeepEqual(impacted, want) {
		t.Fatalf("expected impacted %v, got %v", want, impacted)
	}
}

func TestNeedsDigestComparesMetadata(t *testing.T) {
	s := NewState("/repo")
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.SetFileData(parser.FileSymbols{Path: "a.go", Hash: "h1"}, FileInfo{ModTime: mtime, Size: 10})

	if s.NeedsDigest("a.go", FileInfo{ModTime: mtime, Size: 10}) {
		t.Fatalf("expected identical metadata to skip hashing")
	}
	if !s.NeedsDigest("a.go", FileInfo{ModTime: mtime.Add(time.Second), Size: 10}) {
		t.Fatalf("expected newer mtime to require hashing")
	}
	if !s.NeedsDigest("a.go", FileInfo{ModTime: mtime, Size: 11}) {
		t.Fatalf("expected size change to require hashing")
	}
	if !s.NeedsDigest("new.go", FileInfo{ModTime: mtime, Size: 1}) {
		t.Fatalf("expected unknown file to require hashing")
	}

	s.Touch("a.go", FileInfo{ModTime: mtime.Add(time.Minute), Size: 10})
	if s.NeedsDigest("a.go", FileInfo{ModTime: mtime.Add(time.Minute), Size: 10}) {
		t.Fatalf("expected touched metadata to be recorded")
	}
}

func TestRecordsAndIssuesAreSorted(t *testing.T) {
	s := NewState("/repo")
	s.SetFileData(parser.FileSymbols{Path: "z.py", Language: "python", Hash: "z"}, FileInfo{})
	s.SetFileData(parser.FileSymbols{Path: "a.py", Language: "python", Hash: "a"}, FileInfo{})
	s.SetFailed("m.py", "python", "m", FileInfo{}, "parse failed")

	records := s.Records()
	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}
	if !reflect.DeepEqual(paths, []string{"a.py", "m.py", "z.py"}) {
		t.Fatalf("unexpected record order %v", paths)
	}

	issues := s.Issues()
	if len(issues) != 1 || issues[0].File != "m.py" || issues[0].Severity != "error" {
		t.Fatalf("expected one error issue for m.py, got %#v", issues)
	}
}

func TestCloneDoesNotShareFileTable(t *testing.T) {
	s := NewState("/repo")
	setHash(s, "a.go", "a1")

	clone := s.Clone()
	clone.RemoveFile("a.go")

	if _, ok := s.Files["a.go"]; !ok {
		t.Fatalf("expected cloned-from state to keep a.go")
	}
	if !s.Compatible() {
		t.Fatalf("expected fresh state to be compatible")
	}
}

func setHash(s *State, file, hash string) {
	s.SetFileData(parser.FileSymbols{Path: file, Hash: hash}, FileInfo{})
}

func expectSet(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d (%v)", len(want), len(got), got)
	}

	index := make(map[string]bool, len(got))
	for _, item := range got {
		index[item] = true
	}

	for _, item := range want {
		if !index[item] {
			t.Fatalf("expected item %q in %v", item, got)
		}
	}
}
