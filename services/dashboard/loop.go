package dashboard

import (
	"context"
	"sync"

	"reservo/models"
	"reservo/services/auth"
	"reservo/services/realtime"
	"reservo/services/reservation"
	"reservo/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Loop keeps one viewer's in-memory reservation list in sync with the store.
// It is fed by an initial load, realtime events, a periodic backstop refresh
// and the viewer's own edits.
type Loop struct {
	Store    Store
	Sessions auth.SessionChecker
	Listener realtime.Subscriber
	Notifier Notifier
	FastPath *auth.FastPath
	Token    string
	Clock    clockwork.Clock
	Timings  Timings

	mu       sync.Mutex
	ctx      context.Context
	state    State
	loading  bool
	errMsg   string
	rt       realtime.Status
	items    []models.Reservation
	checked  bool
	closed   bool
	loadSeq  uint64
	watchdog clockwork.Timer
	backstop clockwork.Timer
	recheck  clockwork.Timer
	watchers []chan View
}

func NewLoop(store Store, sessions auth.SessionChecker, listener realtime.Subscriber, fp *auth.FastPath, token string) *Loop {
	return &Loop{
		Store:    store,
		Sessions: sessions,
		Listener: listener,
		FastPath: fp,
		Token:    token,
		Clock:    clockwork.NewRealClock(),
		Timings:  DefaultTimings,
		state:    StateLoading,
		items:    []models.Reservation{},
	}
}

// Watch returns a channel receiving the latest view after every change. Only
// the most recent unread view is kept. The channel closes with the loop.
func (l *Loop) Watch() <-chan View {
	ch := make(chan View, 1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch
	}
	l.watchers = append(l.watchers, ch)
	ch <- l.viewLocked()
	return ch
}

// Snapshot returns the current view.
func (l *Loop) Snapshot() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

// Mount checks the session and, on the first successful check, loads the list
// and opens the realtime channel.
func (l *Loop) Mount(ctx context.Context) {
	logger := utils.GetLogger()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.ctx = context.WithoutCancel(ctx)
	l.mu.Unlock()

	if l.FastPath == nil || !l.FastPath.Present(l.Clock.Now()) {
		l.signOut()
		return
	}
	if !l.checkSession(ctx) {
		return
	}

	l.mu.Lock()
	if l.checked {
		l.mu.Unlock()
		return
	}
	l.checked = true
	l.recheck = l.Clock.AfterFunc(l.Timings.SessionRecheck, l.runRecheck)
	l.mu.Unlock()

	logger.Debug("dashboard: session verified, loading reservations")
	if l.load(ctx) {
		l.subscribe(ctx)
	}

	l.mu.Lock()
	if !l.closed && l.state != StateUnauthenticated {
		l.backstop = l.Clock.AfterFunc(l.Timings.Backstop, l.runBackstop)
	}
	l.mu.Unlock()
}

// Retry reloads after a load error and opens the channel if it is not open.
func (l *Loop) Retry(ctx context.Context) {
	l.mu.Lock()
	if !l.verifiedLocked() {
		l.mu.Unlock()
		return
	}
	needSubscribe := l.rt == "" || l.rt == realtime.StatusClosed || l.rt == realtime.StatusTimedOut
	l.mu.Unlock()

	if l.load(ctx) && needSubscribe {
		l.subscribe(ctx)
	}
}

// Update writes through the store and patches the local copy on success.
// Edits are refused until the session has been verified.
func (l *Loop) Update(ctx context.Context, id string, fields models.ReservationUpdate) reservation.Result {
	if !l.verified() {
		return reservation.Result{Success: false, ID: id, Message: "session not verified", Err: ErrNotVerified}
	}
	res := l.Store.Update(ctx, id, fields)
	if !res.Success {
		return res
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			fields.ApplyTo(&l.items[i])
			l.items[i].UpdatedAt = l.Clock.Now().UTC()
			break
		}
	}
	l.publishLocked()
	return res
}

// Delete removes the reservation locally once the store confirms.
func (l *Loop) Delete(ctx context.Context, id string) bool {
	if !l.verified() {
		return false
	}
	if !l.Store.Delete(ctx, id) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	l.publishLocked()
	return true
}

// Close stops the timers, unsubscribes and closes watcher channels. In-flight
// store calls are not cancelled.
func (l *Loop) Close(ctx context.Context) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.stopTimersLocked()
	for _, ch := range l.watchers {
		close(ch)
	}
	l.watchers = nil
	l.mu.Unlock()

	if l.Listener != nil {
		l.Listener.Unsubscribe(ctx)
	}
}

func (l *Loop) verified() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verifiedLocked()
}

// verifiedLocked reports whether the authoritative session check passed and
// has not since been revoked.
func (l *Loop) verifiedLocked() bool {
	return !l.closed && l.checked && l.state != StateUnauthenticated
}

func (l *Loop) checkSession(ctx context.Context) bool {
	session, err := l.Sessions.GetSession(ctx, l.Token)
	if err != nil || !session.Valid(l.Clock.Now()) {
		if err != nil {
			utils.GetLogger().Info("dashboard: session check failed", zap.Error(err))
		}
		l.signOut()
		return false
	}
	if l.FastPath != nil {
		l.FastPath.MarkTab(l.Clock.Now())
	}
	return true
}

func (l *Loop) signOut() {
	if l.FastPath != nil {
		l.FastPath.Clear()
	}

	l.mu.Lock()
	wasChecked := l.checked
	l.state = StateUnauthenticated
	l.loading = false
	l.errMsg = ""
	l.stopTimersLocked()
	l.publishLocked()
	l.mu.Unlock()

	if wasChecked && l.Listener != nil {
		l.Listener.Unsubscribe(l.baseCtx())
	}
}

// load replaces the list with a full fetch under the loading watchdog.
func (l *Loop) load(ctx context.Context) bool {
	l.mu.Lock()
	l.loadSeq++
	seq := l.loadSeq
	l.state = StateLoading
	l.loading = true
	l.errMsg = ""
	if l.watchdog != nil {
		l.watchdog.Stop()
	}
	l.watchdog = l.Clock.AfterFunc(l.Timings.LoadingTimeout, func() { l.expireLoading(seq) })
	l.publishLocked()
	l.mu.Unlock()

	res := l.Store.List(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.loadSeq || l.closed || l.state == StateUnauthenticated {
		return res.Success
	}
	if l.watchdog != nil {
		l.watchdog.Stop()
		l.watchdog = nil
	}
	l.loading = false
	if !res.Success {
		utils.GetLogger().Error("dashboard: failed to load reservations", zap.String("message", res.Message))
		l.state = StateError
		l.errMsg = res.Message
		l.publishLocked()
		return false
	}
	l.items = append([]models.Reservation{}, res.Data...)
	l.state = StateReady
	l.errMsg = ""
	l.publishLocked()
	return true
}

func (l *Loop) expireLoading(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.loadSeq || !l.loading || l.closed {
		return
	}
	utils.GetLogger().Warn("dashboard: loading watchdog fired", zap.Duration("timeout", l.Timings.LoadingTimeout))
	l.loading = false
	l.state = StateError
	l.errMsg = ErrLoadingTimedOut
	l.watchdog = nil
	l.publishLocked()
}

func (l *Loop) subscribe(ctx context.Context) {
	if l.Listener == nil {
		return
	}
	l.Listener.Subscribe(ctx, realtime.Handlers{
		OnInsert: l.handleInsert,
		OnUpdate: l.handleUpdate,
		OnStatus: l.handleStatus,
	})
}

func (l *Loop) handleInsert(r models.Reservation) {
	l.mu.Lock()
	if l.closed || l.indexLocked(r.ID) >= 0 {
		l.mu.Unlock()
		return
	}
	l.items = append([]models.Reservation{r}, l.items...)
	l.publishLocked()
	l.mu.Unlock()

	if l.Notifier != nil {
		if err := l.Notifier.NotifyNewReservation(l.baseCtx(), r); err != nil {
			utils.GetLogger().Debug("dashboard: notification failed", zap.String("id", r.ID), zap.Error(err))
		}
	}
}

func (l *Loop) handleUpdate(r models.Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	i := l.indexLocked(r.ID)
	if i < 0 || !r.NewerThan(l.items[i]) {
		return
	}
	l.items[i] = r
	l.publishLocked()
}

func (l *Loop) handleStatus(s realtime.Status, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.rt = s
	l.publishLocked()
}

// runBackstop merges a full refetch into the list and re-arms itself.
func (l *Loop) runBackstop() {
	ctx := l.baseCtx()
	res := l.Store.List(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.state == StateUnauthenticated {
		return
	}
	if res.Success {
		l.mergeLocked(res.Data)
		if l.state == StateError && !l.loading {
			l.state = StateReady
			l.errMsg = ""
		}
		l.publishLocked()
	} else {
		utils.GetLogger().Warn("dashboard: backstop refresh failed", zap.String("message", res.Message))
	}
	l.backstop = l.Clock.AfterFunc(l.Timings.Backstop, l.runBackstop)
}

func (l *Loop) runRecheck() {
	if !l.checkSession(l.baseCtx()) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.state == StateUnauthenticated {
		return
	}
	l.recheck = l.Clock.AfterFunc(l.Timings.SessionRecheck, l.runRecheck)
}

// mergeLocked takes the fetched list as the membership and ordering, keeping
// any local entry that is newer than its fetched copy.
func (l *Loop) mergeLocked(fetched []models.Reservation) {
	local := make(map[string]models.Reservation, len(l.items))
	for _, r := range l.items {
		local[r.ID] = r
	}
	merged := make([]models.Reservation, 0, len(fetched))
	for _, r := range fetched {
		if cur, ok := local[r.ID]; ok && !r.NewerThan(cur) {
			merged = append(merged, cur)
			continue
		}
		merged = append(merged, r)
	}
	l.items = merged
}

func (l *Loop) indexLocked(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Loop) stopTimersLocked() {
	for _, t := range []clockwork.Timer{l.watchdog, l.backstop, l.recheck} {
		if t != nil {
			t.Stop()
		}
	}
	l.watchdog, l.backstop, l.recheck = nil, nil, nil
}

func (l *Loop) baseCtx() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

func (l *Loop) viewLocked() View {
	return View{
		State:        l.state,
		Loading:      l.loading,
		Error:        l.errMsg,
		Realtime:     l.rt,
		Reservations: append([]models.Reservation{}, l.items...),
	}
}

func (l *Loop) publishLocked() {
	if l.closed {
		return
	}
	v := l.viewLocked()
	for _, ch := range l.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
