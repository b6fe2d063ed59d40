package scraper

import (
	"encoding/json"
	"os"
	"time"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/ledger"
	"sieforeagent/pkg/contracts/domain"
)

// ReadMetadata reads the run metadata file naming the target period.
func ReadMetadata(path string) (domain.Period, error) {
	data, err := readFile(path)
	if err != nil {
		return domain.Period{}, err
	}
	var meta domain.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Period{}, apperrors.NewStorageError("run metadata is not valid JSON", err).WithContext("file", path)
	}
	p := domain.Period{Year: meta.Year, Month: meta.Month}
	if !p.Valid() {
		return domain.Period{}, apperrors.NewAppValidationError("run metadata holds invalid period "+p.String(), nil).
			WithContext("file", path)
	}
	return p, nil
}

// WriteMetadata records p as the target of the next run.
func WriteMetadata(path string, p domain.Period, at time.Time) error {
	data, err := json.MarshalIndent(domain.RunMetadata{Year: p.Year, Month: p.Month, DetectedAt: at.UTC()}, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode run metadata", err)
	}
	return ledger.WriteFileAtomic(path, append(data, '\n'), 0644)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError("run metadata").WithContext("file", path)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read run metadata", err).WithContext("file", path)
	}
	return data, nil
}
