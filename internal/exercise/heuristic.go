// Package exercise builds practice exercises from textbook text without a
// language model. The results are rough but deterministic.
package exercise

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Blank replaces the hidden word in fill in the blank sentences.
const Blank = "_____"

// Pair is a term and its definition.
type Pair struct {
	Term       string
	Definition string
}

// Question is a sentence with one word blanked out.
type Question struct {
	Sentence string
	Answer   string
	Options  []string
}

var (
	pageHeader   = regexp.MustCompile(`(?m)^--- Page \d+ ---$|^\[.*\]$`)
	sentenceEnd  = regexp.MustCompile(`[.!?]+\s+`)
	definitionRe = regexp.MustCompile(`^(?:An? |The )?([A-Za-z][A-Za-z\- ]{1,40}?) (?:is|are|refers to|means|is called) (.{10,})$`)
)

var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "along": true, "also": true,
	"because": true, "before": true, "being": true, "below": true, "between": true, "called": true,
	"could": true, "during": true, "every": true, "their": true, "there": true, "these": true,
	"those": true, "through": true, "under": true, "until": true, "where": true, "which": true,
	"while": true, "would": true, "other": true, "should": true, "another": true, "without": true,
}

// Sentences splits text into trimmed sentences, dropping page headers and
// placeholder lines.
func Sentences(text string) []string {
	text = pageHeader.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	raw := sentenceEnd.Split(text+" ", -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(strings.TrimRight(s, ".!? "))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Matching extracts up to n "X is Y" style pairs.
func Matching(text string, n int) []Pair {
	seen := make(map[string]bool)
	var pairs []Pair
	for _, sentence := range Sentences(text) {
		if len(pairs) >= n {
			break
		}
		m := definitionRe.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		term := strings.TrimSpace(m[1])
		if len(strings.Fields(term)) > 4 {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		definition := strings.TrimSpace(m[2])
		pairs = append(pairs, Pair{Term: capitalize(term), Definition: capitalize(definition) + "."})
	}
	return pairs
}

// FillBlanks hides the longest meaningful word of up to n sentences. Options
// are drawn from the other answers and sorted.
func FillBlanks(text string, n int) []Question {
	type candidate struct {
		sentence string
		answer   string
	}
	var picked []candidate
	used := make(map[string]bool)
	for _, sentence := range Sentences(text) {
		if len(picked) >= n {
			break
		}
		words := strings.Fields(sentence)
		if len(words) < 6 {
			continue
		}
		answer := longestWord(words)
		if answer == "" || used[strings.ToLower(answer)] {
			continue
		}
		used[strings.ToLower(answer)] = true
		picked = append(picked, candidate{sentence: blankOut(sentence, answer), answer: answer})
	}

	questions := make([]Question, 0, len(picked))
	for i, c := range picked {
		options := []string{c.answer}
		for j := 1; j < len(picked) && len(options) < 4; j++ {
			options = append(options, picked[(i+j)%len(picked)].answer)
		}
		sort.Strings(options)
		questions = append(questions, Question{Sentence: c.sentence + ".", Answer: c.answer, Options: options})
	}
	return questions
}

func longestWord(words []string) string {
	best := ""
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(w) < 5 || stopWords[strings.ToLower(w)] || !isWord(w) {
			continue
		}
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

func isWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}

// blankOut replaces the first whole-word occurrence of word. Hyphens count as
// word characters so "plant" never matches inside "plant-based".
func blankOut(sentence, word string) string {
	re, err := regexp.Compile(`(?:^|[^\p{L}\-])(` + regexp.QuoteMeta(word) + `)(?:[^\p{L}\-]|$)`)
	if err != nil {
		return sentence
	}
	loc := re.FindStringSubmatchIndex(sentence)
	if loc == nil {
		return sentence
	}
	return sentence[:loc[2]] + Blank + sentence[loc[3]:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
