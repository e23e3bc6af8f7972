package trigger

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kanabot/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Berlin"; empty means Local
}

// Service is the in-process trigger substrate, backed by robfig/cron.
//
// It carries two kinds of entries:
//   - user triggers: recurring daily deliveries managed through the Store
//     interface (one entry per "{ordinal}_{userID}" key)
//   - named schedules: standing periodic actions (daily reconcile pass,
//     sweep passes), upserted by name
//
// All entries fire in cron's goroutine; jobs are wrapped with panic recovery
// and the service's run context.
type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	loc  *time.Location
	c    *cron.Cron
	fire FireFunc

	users map[string]*userEntry
	named map[string]*namedEntry

	runCtx    context.Context
	runCancel context.CancelFunc
}

type userEntry struct {
	key     string
	payload Payload
	spec    string
	entryID cron.EntryID
}

type namedEntry struct {
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
}

func New(cfg Config, fire FireFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		fire:  fire,
		users: map[string]*userEntry{},
		named: map[string]*namedEntry{},
	}
}

// Start starts cron triggering. Entries registered before Start are attached
// when the cron loop comes up.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))

	for _, e := range s.users {
		s.addUserLocked(e)
	}
	for _, e := range s.named {
		s.addNamedLocked(e)
	}
	s.c.Start()
	s.log.Info("trigger service started", logx.String("tz", loc.String()),
		logx.Int("user_triggers", len(s.users)), logx.Int("schedules", len(s.named)))
}

// Stop stops cron triggering and waits for in-flight jobs up to ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("trigger service stopped")
}

// ---- Store (user triggers) ----

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Trigger, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Trigger
	for _, e := range s.users {
		if e.payload.UserID != userID {
			continue
		}
		t := Trigger{Key: e.key, UserID: e.payload.UserID, Ordinal: e.payload.Ordinal}
		if s.c != nil && e.entryID != 0 {
			t.NextRun = s.c.Entry(e.entryID).Next
		}
		out = append(out, t)
	}
	return out, nil
}

// Upsert (re)schedules a daily recurring trigger firing at fireAt's time of
// day. An existing entry with the same key is replaced.
func (s *Service) Upsert(ctx context.Context, key string, fireAt time.Time, p Payload) error {
	_ = ctx
	if strings.TrimSpace(key) == "" {
		return errors.New("trigger key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.users[key]; ok {
		s.removeEntryLocked(prev.entryID)
		delete(s.users, key)
	}

	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	at := fireAt.In(loc)
	e := &userEntry{
		key:     key,
		payload: p,
		spec:    fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()),
	}
	s.users[key] = e
	if s.c != nil {
		if err := s.addUserLocked(e); err != nil {
			delete(s.users, key)
			return err
		}
	}
	s.log.Debug("trigger upserted", logx.String("key", key), logx.String("spec", e.spec))
	return nil
}

func (s *Service) Remove(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[key]
	if !ok {
		return nil
	}
	s.removeEntryLocked(e.entryID)
	delete(s.users, key)
	s.log.Debug("trigger removed", logx.String("key", key))
	return nil
}

func (s *Service) addUserLocked(e *userEntry) error {
	payload := e.payload
	id, err := s.c.AddFunc(e.spec, func() {
		s.runFire(payload)
	})
	if err != nil {
		return fmt.Errorf("register trigger %s: %w", e.key, err)
	}
	e.entryID = id
	return nil
}

func (s *Service) runFire(p Payload) {
	s.mu.Lock()
	ctx := s.runCtx
	fire := s.fire
	s.mu.Unlock()
	if fire == nil || ctx == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in trigger fire", logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	fire(ctx, p)
}

// ---- Named schedules ----

// AddDaily registers a standing action firing once a day at HH:MM.
// Upserts by name.
func (s *Service) AddDaily(name, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return err
	}
	return s.addNamed(name, fmt.Sprintf("%d %d * * *", m, h), timeout, job)
}

// AddInterval registers a standing action firing every `every`. Upserts by name.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.addNamed(name, fmt.Sprintf("@every %s", every), timeout, job)
}

func (s *Service) addNamed(name, spec string, timeout time.Duration, job func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.named[name]; ok {
		s.removeEntryLocked(prev.entryID)
		delete(s.named, name)
	}
	e := &namedEntry{name: name, spec: spec, timeout: timeout, job: job}
	s.named[name] = e
	if s.c != nil {
		if err := s.addNamedLocked(e); err != nil {
			delete(s.named, name)
			return err
		}
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec))
	return nil
}

func (s *Service) addNamedLocked(e *namedEntry) error {
	name, timeout, job := e.name, e.timeout, e.job
	id, err := s.c.AddFunc(e.spec, func() {
		s.runNamed(name, timeout, job)
	})
	if err != nil {
		return fmt.Errorf("register schedule %s: %w", e.name, err)
	}
	e.entryID = id
	return nil
}

func (s *Service) runNamed(name string, timeout time.Duration, job func(ctx context.Context) error) {
	s.mu.Lock()
	base := s.runCtx
	s.mu.Unlock()
	if base == nil {
		return
	}
	ctx := base
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in schedule", logx.String("name", name), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Warn("schedule run failed", logx.String("name", name), logx.Err(err),
			logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Trace("schedule run ok", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

func (s *Service) removeEntryLocked(id cron.EntryID) {
	if s.c != nil && id != 0 {
		s.c.Remove(id)
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Location reports the timezone all trigger times are interpreted in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.loadLocationLocked()
}

func parseHHMM(v string) (hour, minute int, err error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return h, m, nil
}
