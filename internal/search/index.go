package search

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

// Per-field term weights. A hit on the symbol's own name counts most, its
// enclosing scope (the FQN without the last segment) next.
const (
	nameWeight      = 4
	scopeWeight     = 3
	signatureWeight = 2
	pathWeight      = 1
	kindWeight      = 1

	// exactNameBoost multiplies the score of symbols whose name is the
	// whole query.
	exactNameBoost = 1.5

	bm25K1 = 1.2
	bm25B  = 0.75
)

// Document is the bag of weighted terms indexed for one symbol.
type Document struct {
	FQN    string
	Name   string
	Length int
	Terms  map[string]int
}

// Index ranks the symbols of one snapshot generation.
type Index struct {
	Generation uint64

	docs    []Document
	docFreq map[string]int
	avgLen  float64
}

type Result struct {
	FQN   string  `json:"fqn"`
	Score float64 `json:"score"`
}

// Build indexes every symbol of snap. A nil snapshot gives an empty index.
func Build(snap *graph.Snapshot) *Index {
	index := &Index{docFreq: make(map[string]int)}
	if snap == nil {
		return index
	}
	index.Generation = snap.Generation

	total := 0
	for _, file := range snap.Paths() {
		for _, sym := range snap.FileSymbols(file) {
			doc := document(sym)
			if doc.Length == 0 {
				continue
			}
			index.docs = append(index.docs, doc)
			total += doc.Length
			for term := range doc.Terms {
				index.docFreq[term]++
			}
		}
	}
	slices.SortFunc(index.docs, func(a, b Document) int {
		return cmp.Compare(a.FQN, b.FQN)
	})
	if len(index.docs) > 0 {
		index.avgLen = float64(total) / float64(len(index.docs))
	}
	return index
}

// Len returns the number of indexed symbols.
func (i *Index) Len() int {
	return len(i.docs)
}

func document(sym parser.Symbol) Document {
	terms := make(map[string]int)
	add := func(value string, weight int) {
		for _, token := range tokenize(value) {
			terms[token] += weight
		}
	}
	add(sym.Name, nameWeight)
	add(scopeOf(sym.FQN), scopeWeight)
	add(sym.Signature, signatureWeight)
	add(sym.File, pathWeight)
	add(sym.Kind.String(), kindWeight)

	length := 0
	for _, n := range terms {
		length += n
	}
	return Document{FQN: sym.FQN, Name: sym.Name, Length: length, Terms: terms}
}

// scopeOf returns the enclosing path of fqn with line and file qualifiers
// removed: "App.Foo.Bar#12@a.cs" gives "App.Foo".
func scopeOf(fqn string) string {
	base := parser.BaseFQN(fqn)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return ""
}

// Search ranks indexed symbols against query with BM25. When no term
// matches, names within a small edit distance of the query are returned.
func Search(index *Index, query string, limit int) []Result {
	if index == nil || len(index.docs) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	terms := slices.Compact(slices.Sorted(slices.Values(tokenize(query))))
	if len(terms) == 0 {
		return nil
	}

	exact := strings.TrimSpace(query)
	var results []Result
	for _, doc := range index.docs {
		score := index.bm25(doc, terms)
		if score <= 0 {
			continue
		}
		if strings.EqualFold(doc.Name, exact) {
			score *= exactNameBoost
		}
		results = append(results, Result{FQN: doc.FQN, Score: score})
	}
	if len(results) == 0 {
		results = index.closeNames(query)
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (i *Index) bm25(doc Document, terms []string) float64 {
	n := float64(len(i.docs))
	avg := i.avgLen
	if avg <= 0 {
		avg = 1
	}
	norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.Length)/avg)

	score := 0.0
	for _, term := range terms {
		tf := float64(doc.Terms[term])
		df := float64(i.docFreq[term])
		if tf == 0 || df == 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * tf * (bm25K1 + 1) / (tf + norm)
	}
	return score
}

// closeNames matches query against symbol names by edit distance. A name
// qualifies when the distance is at most a third of its length, and never
// less than two edits.
func (i *Index) closeNames(query string) []Result {
	needle := squash(query)
	if needle == "" {
		return nil
	}
	var results []Result
	for _, doc := range i.docs {
		name := squash(doc.Name)
		if name == "" {
			continue
		}
		limit := max(2, len([]rune(name))/3)
		if d := editDistance(needle, name); d <= limit {
			results = append(results, Result{FQN: doc.FQN, Score: 1 / float64(1+d)})
		}
	}
	return results
}

func sortResults(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.FQN, b.FQN)
	})
}

// tokenize lowercases each identifier-like word of value. Words written in
// camelCase or snake_case also contribute their parts, so "parse" matches
// ParseDirectory.
func tokenize(value string) []string {
	var tokens []string
	for _, word := range strings.FieldsFunc(value, isSeparator) {
		tokens = append(tokens, strings.ToLower(word))
		if parts := splitIdentifier(word); len(parts) > 1 {
			tokens = append(tokens, parts...)
		}
	}
	return tokens
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func splitIdentifier(word string) []string {
	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	runes := []rune(word)
	for i, r := range runes {
		if r == '_' {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return parts
}

// squash lowercases value and drops everything but letters and digits.
func squash(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, value)
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			sub := prev[j-1]
			if ra[i-1] != rb[j-1] {
				sub++
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
