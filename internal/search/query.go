// Package search ranks face records against free-text descriptions such as
// "nữ, da ngăm, 15 tuổi".
package search

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// AgeSearchPhrase marks a query that carried an explicit age.
	AgeSearchPhrase = "age_search"
	maxPhraseWords  = 3
)

var queryAgeRe = regexp.MustCompile(`(\d{1,2})\s*tuổi`)

// Query is a parsed free-text search.
type Query struct {
	Text         string
	TargetAge    int
	Terms        []string
	ExactPhrases []string
	RawTerms     []string
	AgeOnly      bool
}

// DefaultSynonyms returns the built-in phrase table. Keys are lowercase.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"con gái":     {"nữ"},
		"gái":         {"nữ"},
		"nữ":          {"nữ"},
		"con trai":    {"nam"},
		"trai":        {"nam"},
		"nam":         {"nam"},
		"da ngăm":     {"da ngăm"},
		"da hơi ngăm": {"da ngăm"},
		"ngăm":        {"da ngăm"},
		"da vàng":     {"da vàng"},
		"da trắng":    {"da trắng"},
		"da đen":      {"da đen"},
		"đẹp":         {"đẹp"},
		"xinh":        {"xinh"},
		"đẹp trai":    {"đẹp trai"},
		"xinh đẹp":    {"xinh đẹp"},
		"dễ thương":   {"dễ thương"},
	}
}

// DefaultModifiers are intensity words that carry no search meaning.
func DefaultModifiers() []string {
	return []string{"hơi", "rất", "khá", "tương đối"}
}

// Parser turns query text into search terms using a synonym table.
type Parser struct {
	synonyms  map[string][]string
	modifiers map[string]struct{}
}

// NewParser builds a parser from a synonym table and a list of modifier words.
func NewParser(synonyms map[string][]string, modifiers []string) *Parser {
	p := &Parser{
		synonyms:  make(map[string][]string, len(synonyms)),
		modifiers: make(map[string]struct{}, len(modifiers)),
	}
	for k, v := range synonyms {
		p.synonyms[normalize(k)] = v
	}
	for _, m := range modifiers {
		p.modifiers[normalize(m)] = struct{}{}
	}
	return p
}

// Parse lowercases the text, pulls out the first "<n> tuổi" and maps the
// rest through the synonym table. Whole text wins over comma segments, which
// win over the longest run of up to three words.
func (p *Parser) Parse(text string) Query {
	clean := normalize(text)
	q := Query{Text: clean}

	if m := queryAgeRe.FindStringSubmatchIndex(clean); m != nil {
		q.TargetAge, _ = strconv.Atoi(clean[m[2]:m[3]])
		clean = normalize(clean[:m[0]] + " " + clean[m[1]:])
	}

	var terms, exact, raw orderedSet
	words := strings.Fields(strings.ReplaceAll(clean, ",", " "))

	if clean != "" {
		if mapped, ok := p.synonyms[clean]; ok {
			if len(mapped) > 0 {
				terms.add(mapped...)
				exact.add(clean)
			}
		} else {
			for _, seg := range strings.Split(clean, ",") {
				p.parseSegment(strings.TrimSpace(seg), &terms, &exact, &raw)
			}
		}
	}

	if q.TargetAge > 0 {
		terms.add(strconv.Itoa(q.TargetAge), "tuổi")
		terms.add(ageBracketTerms(q.TargetAge)...)
		exact.add(AgeSearchPhrase)
	}

	q.Terms = terms.items
	q.ExactPhrases = exact.items
	q.RawTerms = raw.items
	q.AgeOnly = q.TargetAge > 0 && len(words) == 0
	return q
}

func (p *Parser) parseSegment(seg string, terms, exact, raw *orderedSet) {
	if seg == "" {
		return
	}
	if _, ok := p.modifiers[seg]; ok {
		return
	}
	if mapped, ok := p.synonyms[seg]; ok {
		if len(mapped) > 0 {
			terms.add(mapped...)
			exact.add(seg)
		}
		return
	}

	words := strings.Fields(seg)
	for i := 0; i < len(words); {
		n := p.matchAt(words, i)
		if n == 0 {
			terms.add(words[i])
			raw.add(words[i])
			i++
			continue
		}
		phrase := strings.Join(words[i:i+n], " ")
		if mapped := p.synonyms[phrase]; len(mapped) > 0 {
			terms.add(mapped...)
			exact.add(phrase)
		}
		i += n
	}
}

// matchAt returns the word count of the longest known phrase starting at i,
// or 0.
func (p *Parser) matchAt(words []string, i int) int {
	for n := min(maxPhraseWords, len(words)-i); n > 0; n-- {
		phrase := strings.Join(words[i:i+n], " ")
		if _, ok := p.synonyms[phrase]; ok {
			return n
		}
		if _, ok := p.modifiers[phrase]; ok {
			return n
		}
	}
	return 0
}

func ageBracketTerms(age int) []string {
	switch {
	case age >= 6 && age <= 11:
		return []string{"tiểu học"}
	case age >= 11 && age <= 15:
		return []string{"trung học cơ sở", "cơ sở"}
	case age >= 15 && age <= 18:
		return []string{"trung học phổ thông", "phổ thông", "học sinh"}
	case age >= 18:
		return []string{"sinh viên"}
	}
	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(vals ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, v := range vals {
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
