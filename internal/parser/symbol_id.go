package parser

import (
	"strconv"
	"strings"
)

const (
	fqnSeparator  = "."
	fileQualifier = "@"
	lineQualifier = "#"
)

// JoinFQN joins a scope chain and a name into a fully-qualified name.
func JoinFQN(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + fqnSeparator + name
}

// WithLine disambiguates a repeated FQN inside one file.
func WithLine(fqn string, line int) string {
	return fqn + lineQualifier + strconv.Itoa(line)
}

// QualifyFQN disambiguates an FQN that is declared in more than one file.
func QualifyFQN(fqn, file string) string {
	return fqn + fileQualifier + file
}

// BaseFQN strips file and line qualifiers: "Foo#3.Bar#12@a.cs" -> "Foo.Bar".
func BaseFQN(fqn string) string {
	if idx := strings.Index(fqn, fileQualifier); idx != -1 {
		fqn = fqn[:idx]
	}
	if !strings.Contains(fqn, lineQualifier) {
		return fqn
	}
	var b strings.Builder
	for i := 0; i < len(fqn); i++ {
		if fqn[i] == lineQualifier[0] {
			j := i + 1
			for j < len(fqn) && fqn[j] >= '0' && fqn[j] <= '9' {
				j++
			}
			if j > i+1 {
				i = j - 1
				continue
			}
		}
		b.WriteByte(fqn[i])
	}
	return b.String()
}
