package resolver

import "strings"

// OrgNormalizer converts a free-text organization string into its identity
// key. The matching policy is deliberately pluggable so it can be swapped
// and tested independently of the merge engine.
type OrgNormalizer interface {
	Normalize(name string) string
}

// StandardOrgNormalizer is the default normalization policy: case-fold,
// strip punctuation and legal suffixes, collapse whitespace, and expand
// common agency abbreviations through a synonym table.
type StandardOrgNormalizer struct {
	synonyms map[string]string
}

// NewStandardOrgNormalizer creates the default normalizer. The synonym
// table maps abbreviations to their canonical expansion; keys and values
// are matched in already-folded form.
func NewStandardOrgNormalizer(synonyms map[string]string) *StandardOrgNormalizer {
	folded := make(map[string]string, len(synonyms))
	for k, v := range synonyms {
		folded[foldSpace(strings.ToLower(k))] = foldSpace(strings.ToLower(v))
	}
	return &StandardOrgNormalizer{synonyms: folded}
}

var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"llc":          true,
	"ltd":          true,
	"limited":      true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"company":      true,
	"llp":          true,
	"lp":           true,
	"plc":          true,
}

// Normalize returns the identity key for an organization name. An empty
// input yields an empty key, which callers treat as unresolvable.
func (n *StandardOrgNormalizer) Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}

	s = stripPunct(s)
	s = strings.TrimPrefix(s, "the ")
	s = foldSpace(s)

	if canonical, ok := n.synonyms[s]; ok {
		return canonical
	}

	tokens := strings.Fields(s)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	s = strings.Join(tokens, " ")

	if canonical, ok := n.synonyms[s]; ok {
		return canonical
	}
	return s
}

var honorifics = map[string]bool{
	"mr":   true,
	"mrs":  true,
	"ms":   true,
	"miss": true,
	"dr":   true,
	"prof": true,
	"hon":  true,
	"col":  true,
	"lt":   true,
	"gen":  true,
	"maj":  true,
	"capt": true,
	"sgt":  true,
	"adm":  true,
}

var nameSuffixes = map[string]bool{
	"jr":  true,
	"sr":  true,
	"ii":  true,
	"iii": true,
	"iv":  true,
	"phd": true,
	"md":  true,
	"esq": true,
}

// NormalizePersonName folds a display name to its identity form: lower
// case, honorifics and credential suffixes removed, whitespace collapsed.
func NormalizePersonName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}

	s = stripPunct(s)
	tokens := strings.Fields(s)
	for len(tokens) > 1 && honorifics[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && nameSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// PersonKey builds the Person identity key from a normalized name and an
// organization identity key.
func PersonKey(normalizedName, orgKey string) string {
	return normalizedName + "|" + orgKey
}

// NormalizeEmail folds an email address for exact-match comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '.', ',', '\'', '"', '(', ')':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func foldSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
