package matcher

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxOCRTokens caps how much raw OCR text is compared against a description.
const maxOCRTokens = 200

// TextScore compares the receipt merchant with the transaction description.
// When no merchant was extracted, the description is looked up in the raw OCR
// text instead. Missing text on either side scores 0.
func TextScore(merchant, ocrText, description string) decimal.Decimal {
	descTokens := Tokenize(description)
	if len(descTokens) == 0 {
		return decimal.Zero
	}

	if merchantTokens := Tokenize(merchant); len(merchantTokens) > 0 {
		return tokenSimilarity(merchantTokens, descTokens)
	}

	ocrTokens := Tokenize(ocrText)
	if len(ocrTokens) > maxOCRTokens {
		ocrTokens = ocrTokens[:maxOCRTokens]
	}
	return tokenSimilarity(descTokens, ocrTokens)
}

// Tokenize folds case, strips diacritics and splits on anything that is not
// a letter or digit.
func Tokenize(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	// Transformers carry state; build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSimilarity matches every query token to its closest target token by
// Levenshtein ratio and returns the mean, scaled to 0-100.
func tokenSimilarity(query, target []string) decimal.Decimal {
	if len(query) == 0 || len(target) == 0 {
		return decimal.Zero
	}

	total := 0.0
	for _, q := range query {
		best := 0.0
		for _, c := range target {
			if sim := similarityRatio(q, c); sim > best {
				best = sim
				if best == 1 {
					break
				}
			}
		}
		total += best
	}

	mean := total / float64(len(query))
	return decimal.NewFromFloat(mean * 100).Round(4)
}

func similarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
