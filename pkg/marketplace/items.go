package marketplace

import (
	"context"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

// ListAgents returns agents ordered by name.
func (s *Service) ListAgents(ctx context.Context, search string) ([]catalog.Agent, error) {
	return s.store.ListAgents(ctx, search)
}

// GetAgent returns one agent.
func (s *Service) GetAgent(ctx context.Context, id string) (*catalog.Agent, error) {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, classify(err, "Agent not found")
	}
	return agent, nil
}

// ListRules returns rules ordered by name.
func (s *Service) ListRules(ctx context.Context, search string) ([]catalog.Rule, error) {
	return s.store.ListRules(ctx, search)
}

// GetRule returns one rule.
func (s *Service) GetRule(ctx context.Context, id string) (*catalog.Rule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, classify(err, "Rule not found")
	}
	return rule, nil
}
