package strategy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed challenges.yaml
var challengesYAML []byte

// ChallengeInfo describes one reward challenge for message rendering.
type ChallengeInfo struct {
	Title  string `yaml:"title"`
	Amount int    `yaml:"amount"`
}

// ChallengeCatalog maps challenge ids to their display info.
type ChallengeCatalog struct {
	Challenges map[string]ChallengeInfo `yaml:"challenges"`
}

// loadChallengeCatalog parses the embedded catalog. The payload may override
// the amount per record; the catalog provides titles and defaults.
func loadChallengeCatalog() (*ChallengeCatalog, error) {
	var catalog ChallengeCatalog
	if err := yaml.Unmarshal(challengesYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse challenge catalog: %w", err)
	}
	if len(catalog.Challenges) == 0 {
		return nil, fmt.Errorf("challenge catalog is empty")
	}
	return &catalog, nil
}

// Lookup returns the challenge info and whether the id is known.
func (c *ChallengeCatalog) Lookup(id string) (ChallengeInfo, bool) {
	info, ok := c.Challenges[id]
	return info, ok
}
