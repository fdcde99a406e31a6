package probe

import (
	"regexp"
	"sort"
)

var (
	reInputName    = regexp.MustCompile(`(?i)name=("|')?[\w-]+`)
	reInputPrefix  = regexp.MustCompile(`(?i)name=("|')?`)
	reVarDecl      = regexp.MustCompile(`(?i)(var|let|const)\s+[\w-]+`)
	reVarPrefix    = regexp.MustCompile(`(?i)(var|let|const)\s+`)
	reQuotedWord   = regexp.MustCompile(`("|')[a-zA-Z0-9]{3,20}('|")`)
	reObjectKey    = regexp.MustCompile(`[{,]\s*[a-zA-Z]\w{2,25}:`)
	reNonWordChars = regexp.MustCompile(`\W`)
)

// PossibleParameters scrapes likely parameter names out of the page:
// input names, javascript variable declarations, short quoted words and
// object keys. Sorted and deduplicated.
func (r *Response) PossibleParameters() []string {
	var found []string

	for _, m := range reInputName.FindAllString(r.Text, -1) {
		found = append(found, reInputPrefix.ReplaceAllString(m, ""))
	}

	for _, m := range reVarDecl.FindAllString(r.Text, -1) {
		found = append(found, reVarPrefix.ReplaceAllString(m, ""))
	}

	for _, m := range reQuotedWord.FindAllString(r.Text, -1) {
		found = append(found, reNonWordChars.ReplaceAllString(m, ""))
	}

	for _, m := range reObjectKey.FindAllString(r.Text, -1) {
		found = append(found, reNonWordChars.ReplaceAllString(m, ""))
	}

	sort.Strings(found)
	out := found[:0]
	for i, p := range found {
		if i == 0 || found[i-1] != p {
			out = append(out, p)
		}
	}
	return out
}
