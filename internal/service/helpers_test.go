package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/persistence"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/repository"
)

type fakeThread struct {
	thread      platform.Thread
	containerID string
	msgs        []platform.Message
}

type fakePlatform struct {
	mu       sync.Mutex
	channels map[string]*platform.Channel
	members  map[string]*platform.Member
	messages map[string][]platform.Message
	edits    map[string][]platform.Message
	threads  map[string]*fakeThread
	seq      int

	// Failure and interleaving hooks for individual tests.
	sendErr          error
	beforeThreadSend func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels: map[string]*platform.Channel{},
		members:  map[string]*platform.Member{},
		messages: map[string][]platform.Message{},
		edits:    map[string][]platform.Message{},
		threads:  map[string]*fakeThread{},
	}
}

func (f *fakePlatform) addMember(id, name string, roleIDs ...string) {
	f.members[id] = &platform.Member{ID: id, Name: name, DisplayName: name, RoleIDs: roleIDs}
}

func (f *fakePlatform) addChannel(id, name, categoryID string) {
	f.channels[id] = &platform.Channel{ID: id, Name: name, CategoryID: categoryID}
}

func (f *fakePlatform) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakePlatform) CreateChannel(_ context.Context, _, name, categoryID string, overlay []platform.PermissionGrant) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel := &platform.Channel{ID: f.nextID("chan"), Name: name, CategoryID: categoryID, Overlay: overlay}
	f.channels[channel.ID] = channel
	return channel, nil
}

func (f *fakePlatform) Channel(_ context.Context, _, channelID string) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	copied := *channel
	return &copied, nil
}

func (f *fakePlatform) ChannelsInCategory(_ context.Context, _, categoryID string) ([]*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*platform.Channel{}
	for _, channel := range f.channels {
		if channel.CategoryID == categoryID {
			copied := *channel
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, _, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	return nil
}

func (f *fakePlatform) SendMessage(_ context.Context, _, channelID string, msg platform.Message) (*platform.SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	f.messages[channelID] = append(f.messages[channelID], msg)
	return &platform.SentMessage{ID: f.nextID("msg"), ChannelID: channelID}, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, _, _, messageID string, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = append(f.edits[messageID], msg)
	return nil
}

func (f *fakePlatform) Member(_ context.Context, _, memberID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[memberID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	copied := *member
	copied.RoleIDs = append([]string{}, member.RoleIDs...)
	return &copied, nil
}

func (f *fakePlatform) MembersWithRole(_ context.Context, _, roleID string) ([]*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*platform.Member{}
	for _, member := range f.members {
		if member.HasRole(roleID) {
			copied := *member
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakePlatform) GrantRole(_ context.Context, _, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[memberID]
	if !ok {
		return platform.ErrNotFound
	}
	if !member.HasRole(roleID) {
		member.RoleIDs = append(member.RoleIDs, roleID)
	}
	return nil
}

func (f *fakePlatform) RevokeRole(_ context.Context, _, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[memberID]
	if !ok {
		return platform.ErrNotFound
	}
	remaining := []string{}
	for _, id := range member.RoleIDs {
		if id != roleID {
			remaining = append(remaining, id)
		}
	}
	member.RoleIDs = remaining
	return nil
}

func (f *fakePlatform) CreateThread(_ context.Context, _, containerID, name string, first platform.Message) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[containerID]; !ok {
		return nil, platform.ErrNotFound
	}
	id := f.nextID("thr")
	f.threads[id] = &fakeThread{
		thread:      platform.Thread{ID: id, Name: name},
		containerID: containerID,
		msgs:        []platform.Message{first},
	}
	copied := f.threads[id].thread
	return &copied, nil
}

func (f *fakePlatform) Thread(_ context.Context, _, threadID string) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.threads[threadID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	copied := ft.thread
	return &copied, nil
}

func (f *fakePlatform) FindThreadByName(_ context.Context, _, containerID, name string) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ft := range f.threads {
		if ft.containerID == containerID && ft.thread.Name == name {
			copied := ft.thread
			return &copied, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (f *fakePlatform) SendToThread(_ context.Context, _, threadID string, msg platform.Message) (*platform.SentMessage, error) {
	if fn := f.beforeThreadSend; fn != nil {
		fn()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.threads[threadID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	ft.msgs = append(ft.msgs, msg)
	return &platform.SentMessage{ID: f.nextID("tmsg"), ChannelID: ft.containerID}, nil
}

func (f *fakePlatform) SetThreadArchived(_ context.Context, _, threadID string, archived, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.threads[threadID]
	if !ok {
		return platform.ErrNotFound
	}
	ft.thread.Archived = archived
	return nil
}

func (f *fakePlatform) threadMessageCount(threadID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.threads[threadID]
	if !ok {
		return 0
	}
	return len(ft.msgs)
}

type testEnv struct {
	platform  *fakePlatform
	configs   repository.ConfigRepository
	timers    *repository.IndexedTimerRepository
	mirror    *ArchiveMirror
	lifecycle *LifecycleManager
	selector  *AssignmentSelector
	scheduler *Scheduler
	clock     time.Time
}

func newTestEnv(t interface{ Helper() }) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	kv := persistence.NewMemoryKV()
	fp := newFakePlatform()

	configs := repository.NewConfigRepository(context.Background(), kv, logger)
	timers := repository.NewIndexedTimerRepository(repository.NewTimerRepository(context.Background(), kv, logger))
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	env := &testEnv{
		platform: fp,
		configs:  configs,
		timers:   timers,
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.mirror = NewArchiveMirror(MirrorDependencies{
		ConfigRepo: configs,
		TimerRepo:  timers,
		Platform:   fp,
		Logger:     logger,
		Metrics:    metrics,
	})
	env.mirror.now = env.now
	env.lifecycle = NewLifecycleManager(LifecycleDependencies{
		ConfigRepo: configs,
		TimerRepo:  timers,
		Platform:   fp,
		Mirror:     env.mirror,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	env.lifecycle.now = env.now
	env.selector = NewAssignmentSelector(SelectorDependencies{
		ConfigRepo: configs,
		Counter:    timers,
		Platform:   fp,
	})
	env.scheduler = NewScheduler(SchedulerDependencies{
		ConfigRepo: configs,
		TimerRepo:  timers,
		Platform:   fp,
		Mirror:     env.mirror,
		Lifecycle:  env.lifecycle,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	env.scheduler.now = env.now
	return env
}

func (e *testEnv) now() time.Time {
	return e.clock
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func memberNamed(id, name string) *platform.Member {
	return &platform.Member{ID: id, Name: name, DisplayName: name}
}

func (e *testEnv) putConfig(workspaceID string, mutate func(cfg *domain.WorkspaceConfig)) {
	cfg := e.configs.Get(workspaceID)
	mutate(cfg)
	e.configs.Put(workspaceID, cfg)
}
