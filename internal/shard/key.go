package shard

import (
	"strings"

	"github.com/signalnine/benchshard/internal/metadata"
)

// missingField stands in for an absent or null metadata field, matching what jq -r prints.
const missingField = "null"

var stripper = strings.NewReplacer("(", "", ")", "", "/", "", " ", "")

// Sanitize removes the characters that cannot appear in a group folder name.
// Only '(', ')', '/' and ' ' are removed; collisions are not disambiguated.
func Sanitize(s string) string {
	return stripper.Replace(s)
}

// Key derives the destination folder name for a run from api_backend and
// traffic_scenario[0] only. Degenerate fields still produce a key; each one
// is described in the returned problems.
func Key(meta *metadata.ExperimentMetadata) (string, []string) {
	var problems []string
	backend, problems := render("api_backend", meta.APIBackend, problems)
	scenario, problems := render("traffic_scenario[0]", meta.FirstScenario, problems)
	return Sanitize(backend + "_" + scenario), problems
}

func render(name string, f metadata.Field, problems []string) (string, []string) {
	switch {
	case f.Null:
		return missingField, append(problems, "missing "+name)
	case f.Issue != "":
		return f.Text, append(problems, f.Issue)
	case f.Text == "":
		return "", append(problems, "empty "+name)
	}
	return f.Text, problems
}
