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

const kindTimers = "ticket_timers"

// TimerRepository stores ticket timer records keyed by
// (workspace id, channel id). Reads return defensive copies; mutation is
// read-modify-Put, serialized by the lifecycle manager.
type TimerRepository interface {
	Get(workspaceID, channelID string) (*domain.TicketTimerRecord, bool)
	Put(rec *domain.TicketTimerRecord)
	Delete(workspaceID, channelID string)
	List(workspaceID string) []*domain.TicketTimerRecord
	ListAll() []*domain.TicketTimerRecord
	Flush(ctx context.Context) error
}

// OpenTicketCounter counts channels where the (assignee, requester) pair
// currently has open tickets; the quota check in the selector depends on
// it.
type OpenTicketCounter interface {
	CountOpen(workspaceID, assigneeID, requesterID string) int
}

type timerRepository struct {
	mu      sync.Mutex
	kv      persistence.KV
	logger  *zap.Logger
	records map[string]map[string]*domain.TicketTimerRecord
	dirty   map[string]bool
}

// NewTimerRepository loads all stored timer records. A store read failure
// degrades to in-memory-only operation with a logged error.
func NewTimerRepository(ctx context.Context, kv persistence.KV, logger *zap.Logger) TimerRepository {
	repo := &timerRepository{
		kv:      kv,
		logger:  logger,
		records: map[string]map[string]*domain.TicketTimerRecord{},
		dirty:   map[string]bool{},
	}
	docs, err := kv.List(ctx, kindTimers)
	if err != nil {
		logger.Error("load timer records; continuing in-memory only", zap.Error(err))
		return repo
	}
	for workspaceID, doc := range docs {
		byChannel := map[string]*domain.TicketTimerRecord{}
		if err := json.Unmarshal(doc, &byChannel); err != nil {
			logger.Error("decode timer records", zap.String("workspace_id", workspaceID), zap.Error(err))
			continue
		}
		for channelID, rec := range byChannel {
			rec.Normalize()
			rec.WorkspaceID = workspaceID
			rec.ChannelID = channelID
		}
		repo.records[workspaceID] = byChannel
	}
	return repo
}

func (r *timerRepository) Get(workspaceID, channelID string) (*domain.TicketTimerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[workspaceID][channelID]
	if !ok {
		return nil, false
	}
	return cloneRecord(rec), true
}

func (r *timerRepository) Put(rec *domain.TicketTimerRecord) {
	rec.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records[rec.WorkspaceID] == nil {
		r.records[rec.WorkspaceID] = map[string]*domain.TicketTimerRecord{}
	}
	r.records[rec.WorkspaceID][rec.ChannelID] = cloneRecord(rec)
	r.dirty[rec.WorkspaceID] = true
}

func (r *timerRepository) Delete(workspaceID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[workspaceID][channelID]; !ok {
		return
	}
	delete(r.records[workspaceID], channelID)
	r.dirty[workspaceID] = true
}

func (r *timerRepository) List(workspaceID string) []*domain.TicketTimerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedRecords(r.records[workspaceID])
}

func (r *timerRepository) ListAll() []*domain.TicketTimerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.TicketTimerRecord{}
	workspaceIDs := make([]string, 0, len(r.records))
	for id := range r.records {
		workspaceIDs = append(workspaceIDs, id)
	}
	sort.Strings(workspaceIDs)
	for _, id := range workspaceIDs {
		out = append(out, sortedRecords(r.records[id])...)
	}
	return out
}

// Flush writes dirty workspaces to the durable store. Failed writes stay
// dirty and are retried on the next flush.
func (r *timerRepository) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := map[string][]byte{}
	for workspaceID := range r.dirty {
		doc, err := json.Marshal(r.records[workspaceID])
		if err != nil {
			r.logger.Error("encode timer records", zap.String("workspace_id", workspaceID), zap.Error(err))
			delete(r.dirty, workspaceID)
			continue
		}
		pending[workspaceID] = doc
	}
	r.mu.Unlock()

	var lastErr error
	for workspaceID, doc := range pending {
		if err := r.kv.Save(ctx, kindTimers, workspaceID, doc); err != nil {
			r.logger.Error("flush timer records", zap.String("workspace_id", workspaceID), zap.Error(err))
			lastErr = err
			continue
		}
		r.mu.Lock()
		delete(r.dirty, workspaceID)
		r.mu.Unlock()
	}
	return lastErr
}

func sortedRecords(byChannel map[string]*domain.TicketTimerRecord) []*domain.TicketTimerRecord {
	out := make([]*domain.TicketTimerRecord, 0, len(byChannel))
	channelIDs := make([]string, 0, len(byChannel))
	for id := range byChannel {
		channelIDs = append(channelIDs, id)
	}
	sort.Strings(channelIDs)
	for _, id := range channelIDs {
		out = append(out, cloneRecord(byChannel[id]))
	}
	return out
}

func cloneRecord(rec *domain.TicketTimerRecord) *domain.TicketTimerRecord {
	copied := *rec
	copied.OpenTicketIDs = append([]string{}, rec.OpenTicketIDs...)
	return &copied
}

// ScanOpenCounter counts open tickets with a linear scan over the
// workspace's records. Acceptable at current scale; swap in
// NewIndexedTimerRepository where workspaces grow large.
type ScanOpenCounter struct {
	Timers TimerRepository
}

func (c ScanOpenCounter) CountOpen(workspaceID, assigneeID, requesterID string) int {
	count := 0
	for _, rec := range c.Timers.List(workspaceID) {
		if rec.AssigneeID == assigneeID && rec.RequesterID == requesterID && len(rec.OpenTicketIDs) > 0 {
			count++
		}
	}
	return count
}

// IndexedTimerRepository decorates a TimerRepository with an
// (assignee, requester) open-ticket index so quota checks are O(1)
// instead of a per-check scan.
type IndexedTimerRepository struct {
	TimerRepository

	mu    sync.Mutex
	index map[string]int
}

// NewIndexedTimerRepository builds the index from the current records.
func NewIndexedTimerRepository(base TimerRepository) *IndexedTimerRepository {
	repo := &IndexedTimerRepository{TimerRepository: base, index: map[string]int{}}
	for _, rec := range base.ListAll() {
		if len(rec.OpenTicketIDs) > 0 {
			repo.index[pairKey(rec.WorkspaceID, rec.AssigneeID, rec.RequesterID)]++
		}
	}
	return repo
}

func (r *IndexedTimerRepository) Put(rec *domain.TicketTimerRecord) {
	prev, existed := r.TimerRepository.Get(rec.WorkspaceID, rec.ChannelID)
	r.TimerRepository.Put(rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existed && len(prev.OpenTicketIDs) > 0 {
		r.decrement(pairKey(prev.WorkspaceID, prev.AssigneeID, prev.RequesterID))
	}
	if len(rec.OpenTicketIDs) > 0 {
		r.index[pairKey(rec.WorkspaceID, rec.AssigneeID, rec.RequesterID)]++
	}
}

func (r *IndexedTimerRepository) Delete(workspaceID, channelID string) {
	prev, existed := r.TimerRepository.Get(workspaceID, channelID)
	r.TimerRepository.Delete(workspaceID, channelID)
	if existed && len(prev.OpenTicketIDs) > 0 {
		r.mu.Lock()
		r.decrement(pairKey(prev.WorkspaceID, prev.AssigneeID, prev.RequesterID))
		r.mu.Unlock()
	}
}

func (r *IndexedTimerRepository) CountOpen(workspaceID, assigneeID, requesterID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[pairKey(workspaceID, assigneeID, requesterID)]
}

func (r *IndexedTimerRepository) decrement(key string) {
	if r.index[key] <= 1 {
		delete(r.index, key)
		return
	}
	r.index[key]--
}

func pairKey(workspaceID, assigneeID, requesterID string) string {
	return workspaceID + "|" + assigneeID + "|" + requesterID
}
