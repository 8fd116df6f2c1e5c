package services

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Lllllllleong/pdfmerge/internal/models"
)

var digitRun = regexp.MustCompile(`\d+`)

// SortFiles orders files for merging. Without sort the input order is kept.
// With sort, files are ordered by the integer value of the first digit run in
// their name when every name has one (ties keep input order), and by plain
// name comparison otherwise.
func SortFiles(files models.FileSet, sort bool) models.FileSet {
	out := slices.Clone(files)
	if !sort {
		return out
	}

	tokens := make(map[string]string, len(out))
	for _, f := range out {
		tok := digitRun.FindString(f.Name)
		if tok == "" {
			slices.SortFunc(out, func(a, b models.SourceFile) int {
				return strings.Compare(a.Name, b.Name)
			})
			return out
		}
		tokens[f.Name] = tok
	}

	slices.SortStableFunc(out, func(a, b models.SourceFile) int {
		return compareDigits(tokens[a.Name], tokens[b.Name])
	})
	return out
}

// compareDigits compares two decimal digit strings by numeric value without
// converting them, so arbitrarily long runs cannot overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
