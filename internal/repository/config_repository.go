package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/persistence"
)

const kindConfig = "ticket_config"

// ConfigRepository stores per-workspace ticket configuration, profiles
// nested within. Reads return defensive copies; all writes go through Put
// and mark the workspace dirty for the next periodic flush.
type ConfigRepository interface {
	Get(workspaceID string) *domain.WorkspaceConfig
	Put(workspaceID string, cfg *domain.WorkspaceConfig)
	WorkspaceIDs() []string
	Flush(ctx context.Context) error
}

type configRepository struct {
	mu      sync.Mutex
	kv      persistence.KV
	logger  *zap.Logger
	configs map[string]*domain.WorkspaceConfig
	dirty   map[string]bool
}

// NewConfigRepository loads all stored workspace configurations. A store
// read failure degrades to in-memory-only operation with a logged error.
func NewConfigRepository(ctx context.Context, kv persistence.KV, logger *zap.Logger) ConfigRepository {
	repo := &configRepository{
		kv:      kv,
		logger:  logger,
		configs: map[string]*domain.WorkspaceConfig{},
		dirty:   map[string]bool{},
	}
	docs, err := kv.List(ctx, kindConfig)
	if err != nil {
		logger.Error("load workspace configs; continuing in-memory only", zap.Error(err))
		return repo
	}
	for workspaceID, doc := range docs {
		cfg := &domain.WorkspaceConfig{}
		if err := json.Unmarshal(doc, cfg); err != nil {
			logger.Error("decode workspace config", zap.String("workspace_id", workspaceID), zap.Error(err))
			continue
		}
		cfg.Normalize()
		repo.configs[workspaceID] = cfg
	}
	return repo
}

func (r *configRepository) Get(workspaceID string) *domain.WorkspaceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[workspaceID]
	if !ok {
		return domain.NewWorkspaceConfig()
	}
	return cloneConfig(cfg)
}

func (r *configRepository) Put(workspaceID string, cfg *domain.WorkspaceConfig) {
	cfg.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[workspaceID] = cloneConfig(cfg)
	r.dirty[workspaceID] = true
}

func (r *configRepository) WorkspaceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush writes dirty workspaces to the durable store. Failed writes stay
// dirty and are retried on the next flush.
func (r *configRepository) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := map[string][]byte{}
	for workspaceID := range r.dirty {
		doc, err := json.Marshal(r.configs[workspaceID])
		if err != nil {
			r.logger.Error("encode workspace config", zap.String("workspace_id", workspaceID), zap.Error(err))
			delete(r.dirty, workspaceID)
			continue
		}
		pending[workspaceID] = doc
	}
	r.mu.Unlock()

	var lastErr error
	for workspaceID, doc := range pending {
		if err := r.kv.Save(ctx, kindConfig, workspaceID, doc); err != nil {
			r.logger.Error("flush workspace config", zap.String("workspace_id", workspaceID), zap.Error(err))
			lastErr = err
			continue
		}
		r.mu.Lock()
		delete(r.dirty, workspaceID)
		r.mu.Unlock()
	}
	return lastErr
}

func cloneConfig(cfg *domain.WorkspaceConfig) *domain.WorkspaceConfig {
	doc, err := json.Marshal(cfg)
	if err != nil {
		copied := *cfg
		return &copied
	}
	out := &domain.WorkspaceConfig{}
	if err := json.Unmarshal(doc, out); err != nil {
		copied := *cfg
		return &copied
	}
	out.Normalize()
	return out
}
