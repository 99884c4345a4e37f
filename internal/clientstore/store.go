package clientstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/realtime"

	"go.uber.org/zap"
)

const defaultPageLimit = 20

type Options struct {
	PageLimit int
}

// Snapshot is a copy of the store state, safe to hand to a renderer.
type Snapshot struct {
	Notifications []common.Notification
	UnreadCount   int64
	Pagination    common.Pagination
	State         realtime.ConnState
	// Err is the last failed read, cleared by the next successful page.
	Err error
}

// Store merges realtime pushes with paginated history. All state is owned
// by the Run goroutine; public methods send commands to it.
type Store struct {
	history HistoryClient
	limit   int
	now     func() time.Time
	logger  *zap.Logger

	cmds    chan func(context.Context)
	results chan any
	wg      sync.WaitGroup

	// loop-owned
	items        map[string]*common.Notification
	gen          uint64
	serverUnread int64
	pagination   common.Pagination
	pushes       map[string]uint64
	reads        map[string]*readMark
	allRead      *allReadMark
	state        realtime.ConnState
	lastErr      error
}

// readMark is a local read the server count may not reflect yet.
type readMark struct {
	acked  bool
	ackGen uint64
}

type allReadMark struct {
	at     time.Time
	acked  bool
	ackGen uint64
}

type pageResult struct {
	startGen uint64
	page     *common.NotificationPage
	err      error
}

type readAck struct {
	ids []string
	err error
}

type allReadAck struct {
	mark *allReadMark
	err  error
}

func NewStore(history HistoryClient, opts Options, logger *zap.Logger) *Store {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	return &Store{
		history: history,
		limit:   opts.PageLimit,
		now:     time.Now,
		logger:  logger,
		cmds:    make(chan func(context.Context)),
		results: make(chan any, 16),
		items:   make(map[string]*common.Notification),
		pushes:  make(map[string]uint64),
		reads:   make(map[string]*readMark),
		state:   realtime.StateConnecting,
	}
}

// Run processes realtime events, command calls and server responses until
// ctx ends. A nil or closed events channel leaves the store pull-only.
func (s *Store) Run(ctx context.Context, events <-chan realtime.ClientEvent) error {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ctx, ev)
		case cmd := <-s.cmds:
			cmd(ctx)
		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func(context.Context) { snap = s.snapshot() })
	return snap, err
}

// Refresh requests a page of history; the result is merged asynchronously.
func (s *Store) Refresh(ctx context.Context, page int) error {
	return s.do(ctx, func(loopCtx context.Context) { s.fetch(loopCtx, page) })
}

// MarkRead marks the ids read locally right away and tells the server.
// Marking a group read passes every member id.
func (s *Store) MarkRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.do(ctx, func(loopCtx context.Context) { s.markRead(loopCtx, ids) })
}

func (s *Store) MarkAllRead(ctx context.Context) error {
	return s.do(ctx, func(loopCtx context.Context) { s.markAllRead(loopCtx) })
}

func (s *Store) do(ctx context.Context, fn func(context.Context)) error {
	done := make(chan struct{})
	cmd := func(loopCtx context.Context) {
		fn(loopCtx)
		close(done)
	}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) handleEvent(ctx context.Context, ev realtime.ClientEvent) {
	switch ev.Kind {
	case realtime.ClientStateChanged:
		s.state = ev.State
		// Pushes missed while disconnected are only recoverable from history.
		if ev.State == realtime.StateActive {
			s.fetch(ctx, 1)
		}
	case realtime.ClientNotification:
		if ev.Notification != nil {
			s.applyPush(*ev.Notification)
		}
	}
}

func (s *Store) applyPush(n common.Notification) {
	s.gen++
	existing, known := s.items[n.ID]
	merged := mergeNotification(existing, n)
	s.items[n.ID] = &merged
	if !known && !merged.Interaction.IsRead {
		s.pushes[n.ID] = s.gen
	}
}

func (s *Store) fetch(ctx context.Context, page int) {
	s.gen++
	start := s.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p, err := s.history.FetchPage(ctx, page, s.limit)
		s.post(ctx, pageResult{startGen: start, page: p, err: err})
	}()
}

func (s *Store) markRead(ctx context.Context, ids []string) {
	now := s.now()
	for _, id := range ids {
		n, ok := s.items[id]
		if !ok || n.Interaction.IsRead {
			continue
		}
		n.Interaction.IsRead = true
		readAt := now
		if readAt.Before(n.CreatedAt) {
			readAt = n.CreatedAt
		}
		n.Interaction.ReadAt = &readAt
		// A push the server count has not seen yet just stops counting.
		if _, pushed := s.pushes[id]; pushed {
			delete(s.pushes, id)
			continue
		}
		s.reads[id] = &readMark{}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.history.MarkRead(ctx, ids)
		s.post(ctx, readAck{ids: ids, err: err})
	}()
}

func (s *Store) markAllRead(ctx context.Context) {
	now := s.now()
	for _, n := range s.items {
		if n.Interaction.IsRead {
			continue
		}
		n.Interaction.IsRead = true
		readAt := now
		if readAt.Before(n.CreatedAt) {
			readAt = n.CreatedAt
		}
		n.Interaction.ReadAt = &readAt
	}
	s.serverUnread = 0
	s.pushes = make(map[string]uint64)
	s.reads = make(map[string]*readMark)
	mark := &allReadMark{at: now}
	s.allRead = mark

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.history.MarkAllRead(ctx)
		s.post(ctx, allReadAck{mark: mark, err: err})
	}()
}

func (s *Store) post(ctx context.Context, r any) {
	select {
	case s.results <- r:
	case <-ctx.Done():
	}
}

func (s *Store) handleResult(r any) {
	s.gen++
	switch r := r.(type) {
	case pageResult:
		s.applyPage(r)
	case readAck:
		if r.err != nil {
			s.logger.Warn("failed to mark notifications read", zap.Strings("notification_ids", r.ids), zap.Error(r.err))
			s.lastErr = r.err
			return
		}
		for _, id := range r.ids {
			if m, ok := s.reads[id]; ok && !m.acked {
				m.acked = true
				m.ackGen = s.gen
			}
		}
	case allReadAck:
		if s.allRead != r.mark {
			return
		}
		if r.err != nil {
			s.logger.Warn("failed to mark all notifications read", zap.Error(r.err))
			s.lastErr = r.err
			s.allRead = nil
			return
		}
		r.mark.acked = true
		r.mark.ackGen = s.gen
	}
}

func (s *Store) applyPage(r pageResult) {
	if r.err != nil {
		s.logger.Warn("failed to load notifications", zap.Error(r.err))
		s.lastErr = r.err
		return
	}
	s.lastErr = nil

	// A page fetched before a mark-all-read landed still counts the old unreads.
	stale := s.allRead != nil && (!s.allRead.acked || s.allRead.ackGen >= r.startGen)

	inPage := make(map[string]bool)
	readInPage := make(map[string]bool)
	for _, entry := range r.page.Notifications {
		for _, n := range entryMembers(entry) {
			if stale && !n.Interaction.IsRead && !n.CreatedAt.After(s.allRead.at) {
				at := s.allRead.at
				n.Interaction.IsRead = true
				n.Interaction.ReadAt = &at
			}
			inPage[n.ID] = true
			if n.Interaction.IsRead {
				readInPage[n.ID] = true
			}
			merged := mergeNotification(s.items[n.ID], n)
			s.items[n.ID] = &merged
		}
	}
	s.pagination = r.page.Pagination

	if stale {
		return
	}
	s.allRead = nil
	s.serverUnread = r.page.UnreadCount

	for id, gen := range s.pushes {
		if inPage[id] || gen < r.startGen {
			delete(s.pushes, id)
		}
	}
	for id, m := range s.reads {
		if readInPage[id] || (m.acked && m.ackGen < r.startGen) {
			delete(s.reads, id)
		}
	}
}

func (s *Store) unreadCount() int64 {
	n := s.serverUnread
	for id := range s.pushes {
		if item, ok := s.items[id]; ok && !item.Interaction.IsRead {
			n++
		}
	}
	n -= int64(len(s.reads))
	if n < 0 {
		return 0
	}
	return n
}

func (s *Store) snapshot() Snapshot {
	out := make([]common.Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return Snapshot{
		Notifications: out,
		UnreadCount:   s.unreadCount(),
		Pagination:    s.pagination,
		State:         s.state,
		Err:           s.lastErr,
	}
}

func entryMembers(e common.ListEntry) []common.Notification {
	if e.Group != nil {
		return e.Group.Members
	}
	if e.Notification != nil {
		return []common.Notification{*e.Notification}
	}
	return nil
}

// mergeNotification combines two views of the same notification. Read state
// only moves forward and the earliest timestamps win.
func mergeNotification(existing *common.Notification, incoming common.Notification) common.Notification {
	out := incoming
	if existing == nil {
		return out
	}
	out.Interaction.IsRead = existing.Interaction.IsRead || incoming.Interaction.IsRead
	out.Interaction.ReadAt = earliest(existing.Interaction.ReadAt, incoming.Interaction.ReadAt)
	out.Interaction.ClickedAt = earliest(existing.Interaction.ClickedAt, incoming.Interaction.ClickedAt)
	if out.Interaction.ActionTaken == "" {
		out.Interaction.ActionTaken = existing.Interaction.ActionTaken
	}
	return out
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
