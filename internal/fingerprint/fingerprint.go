// Package fingerprint derives deterministic cache keys from validated requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aristath/posenv/internal/domain"
)

// canonical is the normalized form that gets hashed. Struct fields marshal in
// declaration order and map keys are sorted by encoding/json, so the bytes
// depend only on the logical parameters.
type canonical struct {
	EnvDate   string                          `json:"env_date"`
	PosDate   string                          `json:"pos_date"`
	Books     []string                        `json:"books"`
	TimeOfDay domain.TimeOfDay                `json:"time_of_day"`
	Sections  map[string]domain.SectionParams `json:"sections"`
}

// Build returns the cache key for a validated request.
// Book order does not affect the key. The request is not re-validated.
func Build(req domain.Request) (string, error) {
	c := canonical{
		EnvDate:   req.Common.EnvDate,
		PosDate:   req.Common.PosDate,
		Books:     req.Common.SortedBooks(),
		TimeOfDay: req.Common.TimeOfDay,
		Sections:  req.Sections,
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
