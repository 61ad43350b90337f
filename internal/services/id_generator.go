package services

import (
	"strings"

	"github.com/google/uuid"
)

// UUIDGenerator issues the ids that prefix stored object names.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a random UUID without dashes, so object names split on
// the first underscore stay unambiguous.
func (g *UUIDGenerator) Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
