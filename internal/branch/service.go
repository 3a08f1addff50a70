package branch

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/sangha-registry/internal"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Hierarchy returns the head office to district tree.
func (s *Service) Hierarchy(ctx context.Context) ([]MainNode, error) {
	mains, err := s.repo.MainBranches(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load main branches", "error", err)
		return nil, internal.NewInternalError("Failed to load branches", err)
	}
	provinces, err := s.repo.ProvinceBranches(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load province branches", "error", err)
		return nil, internal.NewInternalError("Failed to load branches", err)
	}
	districts, err := s.repo.DistrictBranches(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load district branches", "error", err)
		return nil, internal.NewInternalError("Failed to load branches", err)
	}

	byProvince := make(map[int64][]DistrictNode)
	for _, d := range districts {
		byProvince[d.ProvinceBranchID] = append(byProvince[d.ProvinceBranchID], DistrictNode{ID: d.ID, Code: d.Code, Name: d.Name})
	}

	byMain := make(map[int64][]ProvinceNode)
	for _, p := range provinces {
		node := ProvinceNode{ID: p.ID, Code: p.Code, Name: p.Name, Districts: byProvince[p.ID]}
		if node.Districts == nil {
			node.Districts = []DistrictNode{}
		}
		byMain[p.MainBranchID] = append(byMain[p.MainBranchID], node)
	}

	tree := make([]MainNode, 0, len(mains))
	for _, m := range mains {
		node := MainNode{ID: m.ID, Code: m.Code, Name: m.Name, Provinces: byMain[m.ID]}
		if node.Provinces == nil {
			node.Provinces = []ProvinceNode{}
		}
		tree = append(tree, node)
	}
	return tree, nil
}
