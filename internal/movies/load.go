// Reelsage - Personalized Movie Recommendation Scoring
// Copyright 2026 Reelsage Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelsage/reelsage

package movies

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/reelsage/reelsage/internal/recommend"
)

// LoadFile reads a catalog JSON file: either a bare array of movies or an
// object with a top-level "movies" key.
func LoadFile(path string) ([]recommend.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var candidates []recommend.Candidate
	if err := json.Unmarshal(data, &candidates); err == nil {
		return candidates, nil
	}

	var wrapped struct {
		Movies []recommend.Candidate `json:"movies"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return wrapped.Movies, nil
}
