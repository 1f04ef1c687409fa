package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/cache"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/metrics"
	"github.com/varoOP/animesync/internal/outbox"
	"github.com/varoOP/animesync/internal/remote"
)

type State int32

const (
	StateIdle State = iota
	StateDraining
	StateFetching
	StateMerging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	default:
		return "unknown"
	}
}

// Outcome names how a cycle ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeSkipped     Outcome = "skipped"
	OutcomePingFailed  Outcome = "ping_failed"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeStale       Outcome = "stale_server"
	OutcomeStopped     Outcome = "stopped"
	OutcomeError       Outcome = "error"
)

// Result describes one reconciliation cycle
type Result struct {
	Outcome   Outcome
	Drained   int
	Delivered int
	// Retained counts actions left in the outbox after a transport or
	// protocol failure; they are retried next cycle.
	Retained int
	Fetched  int
	Changed  bool
}

// Reconciler drains the outbox against the companion server, then replaces
// the local cache with the server's list. At most one cycle runs at a time.
type Reconciler struct {
	log       zerolog.Logger
	cache     *cache.Service
	outbox    *outbox.Service
	sessions  domain.SessionRepo
	dial      domain.Dialer
	publisher domain.Publisher
	now       func() time.Time

	cycleMu sync.Mutex
	state   atomic.Int32
}

func New(log zerolog.Logger, cache *cache.Service, outbox *outbox.Service, sessions domain.SessionRepo, dial domain.Dialer, publisher domain.Publisher) *Reconciler {
	return &Reconciler{
		log:       log.With().Str("module", "reconcile").Logger(),
		cache:     cache,
		outbox:    outbox,
		sessions:  sessions,
		dial:      dial,
		publisher: publisher,
		now:       time.Now,
	}
}

func (r *Reconciler) State() State {
	return State(r.state.Load())
}

func (r *Reconciler) enter(s State) {
	r.log.Trace().Str("state", s.String()).Msg("state transition")
	r.state.Store(int32(s))
}

// RunCycle runs one cycle and only reports local storage failures
func (r *Reconciler) RunCycle(ctx context.Context) error {
	_, err := r.Cycle(ctx)
	return err
}

// Cycle runs Idle -> Draining -> Fetching -> Merging -> Idle. Remote failures
// end the cycle early and are never returned; the error is reserved for the
// local database. Once ctx is done, pending results are discarded.
func (r *Reconciler) Cycle(ctx context.Context) (*Result, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	start := r.now()
	res := &Result{Outcome: OutcomeError}
	defer func() {
		r.enter(StateIdle)
		metrics.RecordCycle(string(res.Outcome), time.Since(start))
		r.log.Debug().
			Str("outcome", string(res.Outcome)).
			Int("drained", res.Drained).
			Int("delivered", res.Delivered).
			Int("retained", res.Retained).
			Int("fetched", res.Fetched).
			Bool("changed", res.Changed).
			Dur("took", time.Since(start)).
			Msg("sync cycle finished")
	}()

	if ctx.Err() != nil {
		res.Outcome = OutcomeStopped
		return res, nil
	}

	session, err := r.sessions.Get(ctx)
	if err != nil {
		return res, errors.Wrap(err, "failed to read session")
	}
	if !session.Connected() {
		res.Outcome = OutcomeSkipped
		return res, nil
	}
	api := r.dial(session.ServerURL)

	r.enter(StateDraining)
	if err := r.drain(ctx, api, res); err != nil {
		return res, err
	}
	if ctx.Err() != nil {
		res.Outcome = OutcomeStopped
		return res, nil
	}

	r.enter(StateFetching)
	if err := api.Ping(ctx); err != nil {
		r.logRemote(err, "server not reachable, skipping fetch")
		res.Outcome = OutcomePingFailed
		return res, nil
	}

	list, err := api.AnimeList(ctx)
	if err != nil {
		if pe, ok := remote.AsProtocol(err); ok && pe.Stale() {
			res.Outcome = OutcomeStale
			r.logRemote(err, fmt.Sprintf("route %s missing, update the companion server", remote.EndpointAnimeList))
			return res, nil
		}
		r.logRemote(err, "failed to fetch anime list")
		res.Outcome = OutcomeFetchFailed
		return res, nil
	}
	if ctx.Err() != nil {
		res.Outcome = OutcomeStopped
		return res, nil
	}
	res.Fetched = len(list)

	r.enter(StateMerging)
	keys := make(domain.KeySet, len(list))
	for _, a := range list {
		key, ok := domain.Normalize(a.URL)
		if !ok {
			r.log.Debug().Str("url", a.URL).Msg("dropping remote entry without identity")
			continue
		}
		keys[key] = struct{}{}
	}

	if res.Changed, err = r.cache.ReplaceAll(ctx, keys, r.now()); err != nil {
		return res, err
	}

	res.Outcome = OutcomeOK
	return res, nil
}

// drain replays the outbox in FIFO order. An action is cleared once its
// response has been applied; actions hit by a transport or protocol failure
// stay queued. Once an action for a key is held back, every later action for
// that key is held back too, so the next cycle replays them in their order.
// Actions for other keys still go through.
func (r *Reconciler) drain(ctx context.Context, api domain.RemoteAPI, res *Result) error {
	actions, err := r.outbox.DrainAll(ctx)
	if err != nil {
		return err
	}
	res.Drained = len(actions)

	delivered := make([]string, 0, len(actions))
	held := make(map[domain.AnimeKey]struct{})
	for _, a := range actions {
		if ctx.Err() != nil {
			break
		}

		if _, ok := held[a.Key]; ok {
			r.log.Debug().Str("id", a.ID).Str("anime", a.Key.String()).Msg("earlier action for anime not delivered, holding")
			res.Retained++
			continue
		}

		applied, err := r.replay(ctx, api, a)
		if err != nil {
			return err
		}
		if applied {
			delivered = append(delivered, a.ID)
		} else {
			held[a.Key] = struct{}{}
			res.Retained++
		}
	}
	res.Delivered = len(delivered)

	// applied results must be recorded even when the cycle was stopped
	if err := r.outbox.Clear(context.WithoutCancel(ctx), delivered); err != nil {
		return err
	}
	return nil
}

// replay sends one action and applies the answer. It reports false when no
// definitive answer arrived.
func (r *Reconciler) replay(ctx context.Context, api domain.RemoteAPI, a domain.PendingAction) (bool, error) {
	log := r.log.With().Str("id", a.ID).Str("action", string(a.Kind)).Str("anime", a.Key.String()).Logger()

	var (
		result *domain.ActionResult
		err    error
	)
	switch a.Kind {
	case domain.ActionAdd:
		result, err = api.AddDownload(ctx, a.Key, a.Day)
	case domain.ActionRemove:
		result, err = api.RemoveDownload(ctx, a.Key)
	default:
		log.Warn().Msg("dropping action of unknown kind")
		return true, nil
	}

	if err != nil {
		metrics.RecordAction(string(a.Kind), "transport_error")
		r.logRemote(err, "action not delivered, will retry next cycle")
		return false, nil
	}
	if ctx.Err() != nil {
		// response arrived after stop
		return false, nil
	}

	switch a.Kind {
	case domain.ActionAdd:
		return true, r.applyAdd(ctx, log, a, result)
	default:
		return true, r.applyRemove(ctx, log, a, result)
	}
}

func (r *Reconciler) applyAdd(ctx context.Context, log zerolog.Logger, a domain.PendingAction, result *domain.ActionResult) error {
	if !result.OK {
		reason := firstNonEmpty(result.Error, result.Message, "server rejected the download")
		metrics.RecordAction(string(a.Kind), "rejected")
		log.Warn().Str("reason", reason).Msg("add rejected by server")
		return r.cache.Rollback(ctx, a.Key, reason)
	}

	if err := r.cache.AddOptimistic(ctx, a.Key); err != nil {
		return err
	}

	if result.AlreadyExists {
		metrics.RecordAction(string(a.Kind), "already_exists")
		log.Info().Msg("anime already queued on server")
		r.notify(a.Key, domain.LevelInfo, firstNonEmpty(result.Message, "anime already queued"))
		return nil
	}

	metrics.RecordAction(string(a.Kind), "success")
	log.Info().Msg("add confirmed")
	r.notify(a.Key, domain.LevelSuccess, firstNonEmpty(result.Message, "anime added to "+domain.Location(a.Day)))
	return nil
}

// applyRemove never re-adds the key on failure: the removal intent stands.
// TODO: a rejected remove keeps the key out of the cache until the next merge
// restores it, unlike a rejected add which is rolled back at once. Decide
// whether both paths should roll back.
func (r *Reconciler) applyRemove(ctx context.Context, log zerolog.Logger, a domain.PendingAction, result *domain.ActionResult) error {
	if !result.OK {
		reason := firstNonEmpty(result.Error, result.Message, "server rejected the removal")
		metrics.RecordAction(string(a.Kind), "rejected")
		log.Warn().Str("reason", reason).Msg("remove rejected by server")
		r.publisher.Publish(domain.CacheEvent{
			Type:     domain.EventCacheUpdated,
			AnimeURL: a.Key,
			Level:    domain.LevelError,
			Error:    reason,
			At:       r.now(),
		})
		return nil
	}

	if err := r.cache.RemoveOptimistic(ctx, a.Key); err != nil {
		return err
	}

	metrics.RecordAction(string(a.Kind), "success")
	log.Info().Msg("remove confirmed")
	r.notify(a.Key, domain.LevelSuccess, firstNonEmpty(result.Message, "anime removed"))
	return nil
}

func (r *Reconciler) notify(key domain.AnimeKey, level domain.Level, msg string) {
	r.publisher.Publish(domain.CacheEvent{
		Type:     domain.EventCacheUpdated,
		AnimeURL: key,
		Level:    level,
		Message:  msg,
		At:       r.now(),
	})
}

func (r *Reconciler) logRemote(err error, msg string) {
	ev := r.log.Warn().Err(err)
	if pe, ok := remote.AsProtocol(err); ok {
		ev = ev.
			Str("endpoint", pe.Endpoint).
			Int("status", pe.Status).
			Str("content_type", pe.ContentType).
			Str("body_prefix", pe.BodyPrefix)
	}
	ev.Msg(msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
