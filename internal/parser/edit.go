package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	sitter "github.com/smacker/go-tree-sitter"
)

// ComputeEdit describes the single changed byte range between two versions
// of a file as a tree-sitter edit: the common prefix and suffix are kept and
// everything between them is treated as replaced.
func ComputeEdit(oldSrc, newSrc []byte) sitter.EditInput {
	limit := min(len(oldSrc), len(newSrc))

	prefix := 0
	for prefix < limit && oldSrc[prefix] == newSrc[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < limit-prefix && oldSrc[len(oldSrc)-1-suffix] == newSrc[len(newSrc)-1-suffix] {
		suffix++
	}

	oldEnd := len(oldSrc) - suffix
	newEnd := len(newSrc) - suffix

	return sitter.EditInput{
		StartIndex:  uint32(prefix),
		OldEndIndex: uint32(oldEnd),
		NewEndIndex: uint32(newEnd),
		StartPoint:  pointAt(oldSrc, prefix),
		OldEndPoint: pointAt(oldSrc, oldEnd),
		NewEndPoint: pointAt(newSrc, newEnd),
	}
}

func pointAt(src []byte, offset int) sitter.Point {
	head := src[:offset]
	row := bytes.Count(head, []byte{'\n'})
	column := offset - (bytes.LastIndexByte(head, '\n') + 1)
	return sitter.Point{Row: uint32(row), Column: uint32(column)}
}

// Digest returns the short content hash used for change detection.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}
