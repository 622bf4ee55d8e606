package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/store"
)

// DefaultSubjectPrefix is the subject root used when NATSConfig.Prefix is empty.
const DefaultSubjectPrefix = "location"

// DefaultFlushTimeout bounds the round trip that confirms a subscription.
const DefaultFlushTimeout = 2 * time.Second

// NATSConfig configures a NATS backend.
type NATSConfig struct {
	// Prefix is the subject root. Fixes for provider p arrive on
	// <prefix>.fix.<p> and status changes on <prefix>.status.<p>.
	Prefix string

	// DefaultEnabled is reported for providers that never published a status.
	DefaultEnabled bool

	// FlushTimeout bounds the server round trip after subscribing.
	// Default: DefaultFlushTimeout
	FlushTimeout time.Duration

	Logger observe.Logger
}

// Status is the payload published on status subjects.
type Status struct {
	Enabled bool `json:"enabled"`
}

// natsConn is the part of *nats.Conn the backend uses.
type natsConn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	LastError() error
	IsConnected() bool
}

// NATS is a location service fed by NATS messages. It records every fix it
// sees into its store and tracks provider status, so last-known queries and
// enabled checks never touch the network.
//
// Permission violations are reported by the server asynchronously. The
// backend installs a connection error handler that routes them to the
// registration waiting on the refused subject.
type NATS struct {
	conn   natsConn
	store  store.Store
	cfg    NATSConfig
	logger observe.Logger
	next   nats.ErrHandler

	mu      sync.RWMutex
	enabled map[string]bool
	subs    []*nats.Subscription
	pending map[string]*pendingSubs
}

// pendingSubs collects permission violations for subjects being confirmed.
type pendingSubs struct {
	subjects []string
	denied   chan error
	// before is the connection's last error when tracking started.
	before error
}

// NewNATS subscribes to all fix and status subjects under cfg.Prefix. It
// replaces the connection's error handler and forwards every error it does
// not consume to the previous one.
func NewNATS(conn *nats.Conn, s store.Store, cfg NATSConfig) (*NATS, error) {
	n := newNATS(conn, s, cfg)
	n.next = conn.ErrorHandler()
	conn.SetErrorHandler(n.handleAsyncError)

	if err := n.start(); err != nil {
		conn.SetErrorHandler(n.next)
		return nil, err
	}
	return n, nil
}

func newNATS(conn natsConn, s store.Store, cfg NATSConfig) *NATS {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultSubjectPrefix
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if s == nil {
		s = store.NewMemory(store.DefaultPolicy())
	}
	return &NATS{
		conn:    conn,
		store:   s,
		cfg:     cfg,
		logger:  cfg.Logger,
		enabled: make(map[string]bool),
		pending: make(map[string]*pendingSubs),
	}
}

// start subscribes the wildcard recorders.
func (n *NATS) start() error {
	fixSubject, statusSubject := n.cfg.Prefix+".fix.>", n.cfg.Prefix+".status.>"
	id, pending := n.track(fixSubject, statusSubject)
	defer n.untrack(id)

	fixes, err := n.conn.Subscribe(fixSubject, n.recordFix)
	if err != nil {
		return fmt.Errorf("provider: subscribe fixes: %w", translateNATS(err))
	}
	status, err := n.conn.Subscribe(statusSubject, n.recordStatus)
	if err != nil {
		_ = fixes.Unsubscribe()
		return fmt.Errorf("provider: subscribe status: %w", translateNATS(err))
	}

	subs := []*nats.Subscription{fixes, status}
	if err := n.confirm(context.Background(), pending); err != nil {
		_ = unsubscribeAll(subs)
		return fmt.Errorf("provider: subscribe: %w", err)
	}
	n.subs = subs
	return nil
}

// Name returns "nats".
func (n *NATS) Name() string { return "nats" }

// FixSubject returns the subject fixes for provider are published on.
func (n *NATS) FixSubject(provider string) string {
	return n.cfg.Prefix + ".fix." + provider
}

// StatusSubject returns the subject status changes for provider are published on.
func (n *NATS) StatusSubject(provider string) string {
	return n.cfg.Prefix + ".status." + provider
}

// LastKnown returns the latest fix seen for provider.
func (n *NATS) LastKnown(ctx context.Context, provider string) (*location.Location, error) {
	return n.store.Get(ctx, provider)
}

// IsProviderEnabled reports the last published status for provider.
func (n *NATS) IsProviderEnabled(_ context.Context, provider string) (bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if on, ok := n.enabled[provider]; ok {
		return on, nil
	}
	return n.cfg.DefaultEnabled, nil
}

// RegisterSingleUpdate subscribes l to the next valid fix for provider and
// to its disabled notifications. The subscriptions are confirmed with the
// server before it returns, so a refused subject fails with
// ErrPermissionDenied and a fix published afterwards is not missed.
func (n *NATS) RegisterSingleUpdate(ctx context.Context, provider string, l location.Listener) (location.Registration, error) {
	if err := store.ValidateProvider(provider); err != nil {
		return nil, err
	}

	fixSubject, statusSubject := n.FixSubject(provider), n.StatusSubject(provider)
	id, pending := n.track(fixSubject, statusSubject)
	defer n.untrack(id)

	reg := &natsRegistration{}
	fix, err := n.conn.Subscribe(fixSubject, func(msg *nats.Msg) {
		loc, err := n.decodeFix(msg)
		if err != nil {
			n.logger.Warn(context.Background(), "dropping malformed fix",
				observe.Field{Key: "subject", Value: msg.Subject},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return
		}
		if !reg.delivered.CompareAndSwap(false, true) {
			return
		}
		if sub := reg.fix.Load(); sub != nil {
			_ = sub.Unsubscribe()
		}
		if l.OnLocation != nil {
			l.OnLocation(loc)
		}
	})
	if err != nil {
		return nil, translateNATS(err)
	}
	reg.fix.Store(fix)

	status, err := n.conn.Subscribe(statusSubject, func(msg *nats.Msg) {
		var st Status
		if err := json.Unmarshal(msg.Data, &st); err != nil || st.Enabled || l.OnProviderDisabled == nil {
			return
		}
		l.OnProviderDisabled(provider)
	})
	if err != nil {
		_ = fix.Unsubscribe()
		return nil, translateNATS(err)
	}
	reg.subs = []*nats.Subscription{fix, status}

	if err := n.confirm(ctx, pending); err != nil {
		_ = reg.Deregister()
		return nil, err
	}
	return reg, nil
}

// confirm flushes the connection and reports a permission violation raised
// for one of pending's subjects. Flush failures other than denials are
// logged; the client replays subscriptions once it reconnects.
func (n *NATS) confirm(ctx context.Context, pending *pendingSubs) error {
	timeout := n.cfg.FlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	flushErr := errors.New("provider: flush deadline passed")
	if timeout > 0 {
		flushErr = n.conn.FlushTimeout(timeout)
	}

	select {
	case err := <-pending.denied:
		return err
	default:
	}
	// The violation is recorded before the flush reply is read, so it is
	// visible here even when the error handler has not run yet.
	if after := n.conn.LastError(); after != nil && after != pending.before && deniesAny(after, pending.subjects) {
		return fmt.Errorf("%w: %w", location.ErrPermissionDenied, after)
	}

	if flushErr != nil {
		n.logger.Warn(ctx, "nats flush failed",
			observe.Field{Key: "subjects", Value: strings.Join(pending.subjects, ",")},
			observe.Field{Key: "error", Value: flushErr.Error()},
		)
	}
	return nil
}

func (n *NATS) track(subjects ...string) (string, *pendingSubs) {
	id := uuid.NewString()
	p := &pendingSubs{subjects: subjects, denied: make(chan error, 1), before: n.conn.LastError()}
	n.mu.Lock()
	n.pending[id] = p
	n.mu.Unlock()
	return id, p
}

func (n *NATS) untrack(id string) {
	n.mu.Lock()
	delete(n.pending, id)
	n.mu.Unlock()
}

// handleAsyncError is installed as the connection's error handler.
func (n *NATS) handleAsyncError(conn *nats.Conn, sub *nats.Subscription, err error) {
	if n.routeDenial(err) {
		return
	}
	if n.next != nil {
		n.next(conn, sub, err)
		return
	}
	if err != nil {
		n.logger.Warn(context.Background(), "nats async error",
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// routeDenial hands a permission violation to the registrations waiting on
// the refused subject. It reports whether any registration took it.
func (n *NATS) routeDenial(err error) bool {
	if !isPermissionViolation(err) {
		return false
	}
	denied := fmt.Errorf("%w: %w", location.ErrPermissionDenied, err)

	n.mu.RLock()
	defer n.mu.RUnlock()
	routed := false
	for _, p := range n.pending {
		if !deniesAny(err, p.subjects) {
			continue
		}
		select {
		case p.denied <- denied:
		default:
		}
		routed = true
	}
	return routed
}

// PublishFix publishes loc on its provider's fix subject.
func (n *NATS) PublishFix(loc location.Location) error {
	if err := store.ValidateProvider(loc.Provider); err != nil {
		return err
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("provider: encode fix: %w", err)
	}
	return translateNATS(n.conn.Publish(n.FixSubject(loc.Provider), data))
}

// Publish is PublishFix with the Injector signature.
func (n *NATS) Publish(ctx context.Context, loc location.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.PublishFix(loc)
}

// PublishStatus publishes provider's enabled state.
func (n *NATS) PublishStatus(provider string, enabled bool) error {
	if err := store.ValidateProvider(provider); err != nil {
		return err
	}
	data, err := json.Marshal(Status{Enabled: enabled})
	if err != nil {
		return err
	}
	return translateNATS(n.conn.Publish(n.StatusSubject(provider), data))
}

// Connected reports whether the connection is up.
func (n *NATS) Connected() bool {
	return n.conn.IsConnected()
}

// Close removes the backend's subscriptions. The connection is left open.
func (n *NATS) Close() error {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()
	return unsubscribeAll(subs)
}

func (n *NATS) recordFix(msg *nats.Msg) {
	loc, err := n.decodeFix(msg)
	if err != nil {
		n.logger.Warn(context.Background(), "dropping malformed fix",
			observe.Field{Key: "subject", Value: msg.Subject},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	if err := n.store.Put(context.Background(), loc); err != nil {
		n.logger.Warn(context.Background(), "failed to record fix",
			observe.Field{Key: "provider", Value: loc.Provider},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

func (n *NATS) recordStatus(msg *nats.Msg) {
	provider := strings.TrimPrefix(msg.Subject, n.cfg.Prefix+".status.")
	var st Status
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		n.logger.Warn(context.Background(), "dropping malformed status",
			observe.Field{Key: "subject", Value: msg.Subject},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	n.mu.Lock()
	n.enabled[provider] = st.Enabled
	n.mu.Unlock()
}

// decodeFix parses a fix. The provider defaults to the subject's last token.
// Elapsed readings come from the publisher's clock and are dropped.
func (n *NATS) decodeFix(msg *nats.Msg) (location.Location, error) {
	var loc location.Location
	if err := json.Unmarshal(msg.Data, &loc); err != nil {
		return loc, err
	}
	if loc.Provider == "" {
		loc.Provider = strings.TrimPrefix(msg.Subject, n.cfg.Prefix+".fix.")
	}
	loc.ElapsedRealtime = 0
	return loc, nil
}

type natsRegistration struct {
	subs      []*nats.Subscription
	fix       atomic.Pointer[nats.Subscription]
	delivered atomic.Bool
	once      sync.Once
}

func (r *natsRegistration) Deregister() error {
	var err error
	r.once.Do(func() {
		err = unsubscribeAll(r.subs)
	})
	return err
}

// unsubscribeAll removes subs. Subscriptions that already ended, such as a
// fix subscription that received its one message, are not errors.
func unsubscribeAll(subs []*nats.Subscription) error {
	var errs []error
	for _, sub := range subs {
		err := sub.Unsubscribe()
		if err == nil || errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			continue
		}
		errs = append(errs, translateNATS(err))
	}
	return errors.Join(errs...)
}

func isPermissionViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), nats.PERMISSIONS_ERR)
}

// deniesAny reports whether err is a permission violation naming one of
// subjects. The server quotes the refused subject.
func deniesAny(err error, subjects []string) bool {
	if !isPermissionViolation(err) {
		return false
	}
	msg := err.Error()
	for _, s := range subjects {
		if strings.Contains(msg, `"`+s+`"`) {
			return true
		}
	}
	return false
}

func translateNATS(err error) error {
	if errors.Is(err, nats.ErrAuthorization) || isPermissionViolation(err) {
		return fmt.Errorf("%w: %w", location.ErrPermissionDenied, err)
	}
	return err
}

var _ Backend = (*NATS)(nil)
