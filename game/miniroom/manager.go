package miniroom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	"github.com/kasuganosora/worldsrv/scheduler"
	"go.uber.org/zap"
)

var (
	ErrHasShop            = errors.New("miniroom: character already runs a shop")
	ErrMailboxPending     = errors.New("miniroom: mailbox must be claimed first")
	ErrMailboxUnavailable = errors.New("miniroom: mailbox unavailable")
	ErrInDialog           = errors.New("miniroom: character is busy")
)

// Mailbox is where a closing shop leaves what it cannot hand back.
type Mailbox interface {
	Probe(ctx context.Context, characterID int32) (bool, error)
	SaveUnsold(ctx context.Context, si *mailbox.ShopItem) bool
	SaveSold(ctx context.Context, si *mailbox.ShopItem) bool
}

// Sessions looks up characters connected to this channel.
type Sessions interface {
	Get(charID int32) *player.PlayerSession
}

// Options are the tunables of every shop.
type Options struct {
	SlotMax  int
	Duration time.Duration
	Tax      TaxTable
}

// OptionsFromConfig reads the shop settings of cfg.
func OptionsFromConfig(cfg config.GameConfig) Options {
	opts := Options{
		SlotMax:  cfg.ShopSlotMax,
		Duration: cfg.ShopDuration,
		Tax:      NewTaxTable(cfg.ShopTax),
	}
	if opts.SlotMax <= 0 {
		opts.SlotMax = 16
	}
	if opts.Duration <= 0 {
		opts.Duration = 24 * time.Hour
	}
	if len(opts.Tax) == 0 {
		opts.Tax = DefaultTaxTable
	}
	return opts
}

// Deps are the collaborators shared by every shop.
type Deps struct {
	Cache     cache.Cache
	Mailbox   Mailbox
	Items     item.InfoProvider
	Serials   item.SerialAllocator
	Scheduler *scheduler.Scheduler
	Fields    *field.Manager
	Sessions  Sessions
	Audit     *audit.Service
}

// Manager owns the entrusted shops of this channel, at most one per
// employer. A cache lock extends that rule across channels.
type Manager struct {
	cache    cache.Cache
	mailbox  Mailbox
	items    item.InfoProvider
	serials  item.SerialAllocator
	sched    *scheduler.Scheduler
	fields   *field.Manager
	sessions Sessions
	audit    *audit.Service
	opts     Options
	tax      TaxTable
	now      func() time.Time
	logger   *zap.Logger

	mu    sync.Mutex
	shops map[int32]*EntrustedShop
}

// noItems knows no item, so every stocking attempt is refused.
type noItems struct{}

func (noItems) ItemInfo(int32) (*item.Info, bool) { return nil, false }

// NewManager creates a Manager. Without Deps.Items no item can be stocked.
func NewManager(deps Deps, opts Options, logger *zap.Logger) *Manager {
	tax := opts.Tax
	if len(tax) == 0 {
		tax = DefaultTaxTable
	}
	items := deps.Items
	if items == nil {
		items = noItems{}
	}
	return &Manager{
		cache:    deps.Cache,
		mailbox:  deps.Mailbox,
		items:    items,
		serials:  deps.Serials,
		sched:    deps.Scheduler,
		fields:   deps.Fields,
		sessions: deps.Sessions,
		audit:    deps.Audit,
		opts:     opts,
		tax:      tax,
		now:      time.Now,
		logger:   logger,
		shops:    make(map[int32]*EntrustedShop),
	}
}

func lockKey(employerID int32) string {
	return fmt.Sprintf("lock:shop:%d", employerID)
}

// CreateRequest describes a shop the owner is setting up.
type CreateRequest struct {
	Title      string
	TemplateID int32
	X, Y       int16
	Foothold   int16
}

// Create sets up a shop for owner in field f and seats the owner. Opening a
// new shop is refused while the owner has anything waiting in the mailbox or
// the mailbox cannot be checked.
func (m *Manager) Create(ctx context.Context, owner *player.PlayerSession, f *field.Field, req CreateRequest) (*EntrustedShop, error) {
	if owner.Dialog() != nil {
		return nil, ErrInDialog
	}
	m.mu.Lock()
	_, exists := m.shops[owner.CharID]
	m.mu.Unlock()
	if exists {
		return nil, ErrHasShop
	}

	pending, err := m.mailbox.Probe(ctx, owner.CharID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailboxUnavailable, err)
	}
	if pending {
		return nil, ErrMailboxPending
	}

	ok, err := m.cache.SetNX(ctx, lockKey(owner.CharID), owner.CharName, m.opts.Duration+time.Hour)
	if err != nil {
		return nil, fmt.Errorf("miniroom: shop lock: %w", err)
	}
	if !ok {
		return nil, ErrHasShop
	}

	s := &EntrustedShop{
		m:            m,
		field:        f,
		title:        req.Title,
		employerID:   owner.CharID,
		employerName: owner.CharName,
		templateID:   req.TemplateID,
		x:            req.X,
		y:            req.Y,
		foothold:     req.Foothold,
		slotMax:      m.opts.SlotMax,
	}

	m.mu.Lock()
	if _, exists := m.shops[owner.CharID]; exists {
		m.mu.Unlock()
		return nil, ErrHasShop
	}
	m.shops[owner.CharID] = s
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if f != nil {
		s.id = f.AddMiniRoom(s)
	}
	s.users[0] = owner
	owner.SetDialog(s)
	owner.Write(EnterPacket(s, 0))
	m.logger.Info("entrusted shop created",
		zap.Int32("employer_id", owner.CharID),
		zap.Int32("shop_id", s.id),
		zap.String("title", req.Title))
	return s, nil
}

// forget drops s from the registry and releases its cache lock.
func (m *Manager) forget(ctx context.Context, s *EntrustedShop) {
	m.mu.Lock()
	if m.shops[s.employerID] == s {
		delete(m.shops, s.employerID)
	}
	m.mu.Unlock()
	if err := m.cache.Del(ctx, lockKey(s.employerID)); err != nil {
		m.logger.Warn("release shop lock failed",
			zap.Int32("employer_id", s.employerID), zap.Error(err))
	}
}

func (m *Manager) onlineOwner(charID int32) *player.PlayerSession {
	if m.sessions == nil {
		return nil
	}
	if s := m.sessions.Get(charID); s != nil && !s.IsClosed() {
		return s
	}
	return nil
}

// ByEmployer returns the shop run by charID, or nil.
func (m *Manager) ByEmployer(charID int32) *EntrustedShop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shops[charID]
}

// Count returns the number of live shops.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shops)
}

// Shutdown closes every shop, sending balances home or to the mailbox.
func (m *Manager) Shutdown(ctx context.Context) {
	shops := m.All()
	for _, s := range shops {
		s.Close(ctx, LeaveClosed)
	}
	m.logger.Info("entrusted shops closed", zap.Int("count", len(shops)))
}

// All returns the live shops in no particular order.
func (m *Manager) All() []*EntrustedShop {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*EntrustedShop, 0, len(m.shops))
	for _, s := range m.shops {
		out = append(out, s)
	}
	return out
}
