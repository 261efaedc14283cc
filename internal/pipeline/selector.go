package pipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"alphaminer/internal/ai"
	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
)

// Catalog lists the datasets available on the platform
type Catalog interface {
	ListDatasets(ctx context.Context) ([]brain.Dataset, error)
}

// DatasetAdvisor picks the most promising dataset from a candidate list
type DatasetAdvisor interface {
	SelectDataset(ctx context.Context, datasets []brain.Dataset) (*ai.DatasetSelection, error)
}

// CatalogSelector serves datasets for mining. It loads the platform catalog
// once, asks the advisor to rank the remaining candidates, and never serves
// the same dataset twice in one session. An empty remainder or a catalog
// failure is fatal.
type CatalogSelector struct {
	catalog Catalog
	advisor DatasetAdvisor

	mu       sync.Mutex
	datasets []brain.Dataset
	served   map[string]bool
	loaded   bool
}

// NewCatalogSelector creates a catalog-backed dataset selector
func NewCatalogSelector(catalog Catalog, advisor DatasetAdvisor) *CatalogSelector {
	return &CatalogSelector{
		catalog: catalog,
		advisor: advisor,
		served:  make(map[string]bool),
	}
}

// SelectDataset returns the next dataset to mine
func (s *CatalogSelector) SelectDataset(ctx context.Context) (*brain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		datasets, err := s.catalog.ListDatasets(ctx)
		if err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeDatasetSelection, "failed to load dataset catalog")
		}
		if len(datasets) == 0 {
			return nil, apperrors.NewAppError(apperrors.ErrCodeDatasetSelection, "dataset catalog is empty", nil)
		}
		s.datasets = datasets
		s.loaded = true
		logging.WithField("datasets", len(datasets)).Info("Loaded dataset catalog")
	}

	remaining := s.remaining()
	if len(remaining) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrCodeDatasetSelection, "all datasets exhausted", nil)
	}

	selected := s.pick(ctx, remaining)
	s.served[selected.ID] = true
	logging.WithFields(logrus.Fields{
		"dataset": selected.ID,
		"name":    selected.Name,
	}).Info("Selected dataset for mining")
	return selected, nil
}

// remaining returns the datasets not yet served this session
func (s *CatalogSelector) remaining() []brain.Dataset {
	var out []brain.Dataset
	for _, dataset := range s.datasets {
		if !s.served[dataset.ID] {
			out = append(out, dataset)
		}
	}
	return out
}

// pick asks the advisor to choose, falling back to catalog order when the
// advisor fails or names a dataset outside the candidate list
func (s *CatalogSelector) pick(ctx context.Context, remaining []brain.Dataset) *brain.Dataset {
	selection, err := s.advisor.SelectDataset(ctx, remaining)
	if err != nil {
		logging.WithError(err).Warn("Dataset advisor failed, using catalog order")
		return &remaining[0]
	}

	for i := range remaining {
		if remaining[i].ID == selection.SelectedDataset {
			logging.WithFields(logrus.Fields{
				"dataset": selection.SelectedDataset,
				"reason":  selection.Reason,
			}).Debug("Advisor selected dataset")
			return &remaining[i]
		}
	}

	logging.WithField("dataset", selection.SelectedDataset).
		Warn("Advisor selected an unknown dataset, using catalog order")
	return &remaining[0]
}
