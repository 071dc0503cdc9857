package uph

import (
	"strings"

	"uph-engine/internal/storage"
)

type categoryRule struct {
	category storage.Category
	keywords []string
}

// order matters, the first matching rule wins
var categoryRules = []categoryRule{
	{category: storage.CategoryCutting, keywords: []string{"cutting", "laser", "webbing"}},
	{category: storage.CategoryAssembly, keywords: []string{"sewing", "assembly", "rope", "embroidery", "grommet", "zipper"}},
	{category: storage.CategoryPackaging, keywords: []string{"packaging", "pack"}},
}

// Classify maps a free-text work-center name onto a canonical category.
func Classify(workCenter string) (storage.Category, bool) {
	name := strings.ToLower(workCenter)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.category, true
			}
		}
	}

	return "", false
}

// Categorize resolves the category of every cycle. Cycles whose work center
// matches no rule are dropped; their distinct names are returned for logging.
func Categorize(cycles []storage.CanonicalCycle) ([]storage.CanonicalCycle, []IngestRejection, []string) {
	out := make([]storage.CanonicalCycle, 0, len(cycles))
	var rejected []IngestRejection
	var unmapped []string
	seen := make(map[string]struct{})

	for _, c := range cycles {
		category, ok := Classify(c.WorkCenterName)
		if !ok {
			rejected = append(rejected, IngestRejection{CycleID: c.CycleID, Reason: storage.ReasonUnmappedWorkCenter})
			if _, dup := seen[c.WorkCenterName]; !dup {
				seen[c.WorkCenterName] = struct{}{}
				unmapped = append(unmapped, c.WorkCenterName)
			}
			continue
		}

		c.Category = category
		out = append(out, c)
	}

	return out, rejected, unmapped
}
