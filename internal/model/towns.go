package model

import (
	_ "embed"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed towns.yaml
var townsYAML []byte

var hdbTowns = loadTowns()

func loadTowns() []string {
	var doc struct {
		Towns []string `yaml:"towns"`
	}
	if err := yaml.Unmarshal(townsYAML, &doc); err != nil {
		panic("model: parse towns.yaml: " + err.Error())
	}
	return doc.Towns
}

// Towns returns the registry of HDB towns covered by the pipeline.
func Towns() []string {
	out := make([]string, len(hdbTowns))
	copy(out, hdbTowns)
	return out
}

var townFolder = cases.Fold()

// NormalizeTown canonicalizes a user-supplied town name against the registry.
// Matching is case-insensitive under Unicode case folding; the second return
// is false when the name is not a known HDB town.
func NormalizeTown(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	folded := townFolder.String(trimmed)
	for _, t := range hdbTowns {
		if townFolder.String(t) == folded {
			return t, true
		}
	}
	return "", false
}
