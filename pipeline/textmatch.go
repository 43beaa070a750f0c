package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// foldCaser implements locale-independent Unicode case folding, used
// throughout for matching modality names, mitochondrial/IgG prefixes, and
// feature symbols without regard to case.
var foldCaser = cases.Fold()

// titleCaser is used only to canonicalize the embedded mitochondrial gene
// symbol lookup to a single case after folding, so the lookup's authoring
// case doesn't matter either.
var titleCaser = cases.Title(language.Und)

func foldEqual(a, b string) bool {
	return foldCaser.String(a) == foldCaser.String(b)
}

func foldHasPrefix(s, prefix string) bool {
	return strings.HasPrefix(foldCaser.String(s), foldCaser.String(prefix))
}
