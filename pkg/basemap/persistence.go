package basemap

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// snapshot is the serializable form of a basemap feature set.
type snapshot struct {
	Features []models.Feature
}

// SaveSnapshot writes a feature set to a binary file.
func SaveSnapshot(filename string, features []models.Feature) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(snapshot{Features: features}); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a feature set from a binary file.
func LoadSnapshot(filename string) ([]models.Feature, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var snap snapshot
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snap.Features, nil
}
