package miniroom

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	"github.com/kasuganosora/worldsrv/scheduler"
	"go.uber.org/zap"
)

// maxUsers is the seat count: the owner at 0 and three visitors.
const maxUsers = 4

// ErrInvalidAction marks client input that is impossible in the shop's
// current state. The caller disposes the connection.
var ErrInvalidAction = errors.New("miniroom: invalid action")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidAction}, args...)...)
}

// EntrustedShop is a hired merchant: a mini-room that keeps selling consigned
// stock while its owner is away. Every exported method takes the shop lock.
type EntrustedShop struct {
	m            *Manager
	id           int32
	field        *field.Field
	title        string
	employerID   int32
	employerName string
	templateID   int32
	x, y         int16
	foothold     int16
	slotMax      int

	mu         sync.Mutex
	users      [maxUsers]*player.PlayerSession
	items      []*PlayerShopItem
	blocked    []string
	visits     []string
	sold       []SoldItemRecord
	money      int32
	open       bool
	spawned    bool
	closed     bool
	openTime   time.Time
	expireTime time.Time
	expiry     *scheduler.Task
}

// OwnerID returns the employer's character id.
func (s *EntrustedShop) OwnerID() int32 { return s.employerID }

// ID returns the shop's id in its field.
func (s *EntrustedShop) ID() int32 { return s.id }

// Title returns the shop sign.
func (s *EntrustedShop) Title() string { return s.title }

// EmployerName returns the owner's character name.
func (s *EntrustedShop) EmployerName() string { return s.employerName }

// Money returns the shop balance.
func (s *EntrustedShop) Money() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.money
}

// Items returns a copy of the stock.
func (s *EntrustedShop) Items() []*PlayerShopItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PlayerShopItem, len(s.items))
	for i, si := range s.items {
		out[i] = si.clone()
	}
	return out
}

// SoldItems returns the sale history.
func (s *EntrustedShop) SoldItems() []SoldItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SoldItemRecord(nil), s.sold...)
}

// BlackList returns the barred character names.
func (s *EntrustedShop) BlackList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.blocked...)
}

// VisitList returns the names of everyone who has entered the open shop.
func (s *EntrustedShop) VisitList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// IsOpen reports whether visitors can buy.
func (s *EntrustedShop) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// IsClosed reports whether the shop has been shut down for good.
func (s *EntrustedShop) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Seated returns the session in seat index, or nil.
func (s *EntrustedShop) Seated(index int) *player.PlayerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= maxUsers {
		return nil
	}
	return s.users[index]
}

// TimePassed returns how long the shop has been open since it first opened.
func (s *EntrustedShop) TimePassed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timePassed()
}

func (s *EntrustedShop) timePassed() time.Duration {
	if s.openTime.IsZero() {
		return 0
	}
	return s.m.now().Sub(s.openTime)
}

// TimeRemaining returns the time left before expiry, never negative.
func (s *EntrustedShop) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireTime.IsZero() {
		return 0
	}
	return max(0, s.expireTime.Sub(s.m.now()))
}

// Expired reports whether the expiry time has passed.
func (s *EntrustedShop) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expireTime.IsZero() && s.m.now().After(s.expireTime)
}

func (s *EntrustedShop) userIndex(u *player.PlayerSession) int {
	for i, cur := range s.users {
		if cur != nil && cur == u {
			return i
		}
	}
	return -1
}

func (s *EntrustedShop) isOwner(u *player.PlayerSession) bool {
	return s.users[0] != nil && s.users[0] == u
}

func (s *EntrustedShop) seated() int {
	n := 0
	for _, u := range s.users {
		if u != nil {
			n++
		}
	}
	return n
}

func (s *EntrustedShop) openSeat() int {
	for i := 1; i < maxUsers; i++ {
		if s.users[i] == nil {
			return i
		}
	}
	return -1
}

func (s *EntrustedShop) broadcast(out *packet.OutPacket) {
	data := out.Bytes()
	for _, u := range s.users {
		if u != nil {
			u.SendRaw(data)
		}
	}
}

func (s *EntrustedShop) updateBalloon() {
	if s.open && s.field != nil {
		s.field.Broadcast(EmployeeBalloonPacket(s))
	}
}

func (s *EntrustedShop) noMoreItem() bool {
	for _, si := range s.items {
		if si.Bundles > 0 {
			return false
		}
	}
	return true
}

// PutItem moves bundles×perBundle units from the owner's inventory slot into
// a new stock entry selling each bundle at price.
func (s *EntrustedShop) PutItem(ctx context.Context, u *player.PlayerSession, invType int8, pos int16, bundles, perBundle, price int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := item.InventoryTypeFromValue(invType)
	total := int64(price) * int64(bundles)
	if !ok || t == item.Equipped || pos < 0 ||
		bundles <= 0 || perBundle <= 0 || price <= 0 ||
		total <= 0 || total > math.MaxInt32 ||
		len(s.items) >= s.slotMax || s.open || s.closed || !s.isOwner(u) {
		return invalid("put item type %d pos %d bundles %d x %d price %d", invType, pos, bundles, perBundle, price)
	}
	inv := u.Inventory()
	if inv == nil {
		return invalid("put item without inventory")
	}
	qty := int64(bundles) * int64(perBundle)
	it := inv.ItemAt(t, pos)
	if it == nil || int64(it.Quantity) < qty {
		return invalid("put item: nothing to stock at type %d pos %d", invType, pos)
	}
	info, ok := s.m.items.ItemInfo(it.ItemID)
	if !ok {
		return invalid("put item: no metadata for %d", it.ItemID)
	}
	if info.IsTradeBlock(it) || info.AccountSharable {
		return invalid("put item: %d is not tradable", it.ItemID)
	}

	sn, err := s.m.serials.Next(ctx)
	if err != nil {
		return fmt.Errorf("miniroom: allocate item serial: %w", err)
	}
	op, ok := inv.RemoveItem(t, pos, it, int32(qty))
	if !ok {
		s.m.logger.Error("inventory removal failed after validation",
			zap.Int32("char_id", u.CharID),
			zap.Int32("item_id", it.ItemID),
			zap.Int64("quantity", qty))
		return invalid("put item: removal failed")
	}
	stock := it.Clone()
	stock.SN = sn
	stock.Quantity = perBundle
	s.items = append(s.items, &PlayerShopItem{
		Item:      stock,
		PerBundle: perBundle,
		Bundles:   bundles,
		Price:     price,
	})
	u.Write(item.OperationPacket([]item.Operation{op}, true))
	u.Write(RefreshPacket(s.money, s.items))
	return nil
}

// Buy sells count bundles of the entry at index to a seated visitor. Only the
// Unknown result comes with ErrInvalidAction; the other failures are ordinary
// outcomes reported to the buyer. A failed buy changes nothing.
func (s *EntrustedShop) Buy(ctx context.Context, u *player.PlayerSession, index int, count int32) (BuyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fail := func(r BuyResult) (BuyResult, error) {
		u.Write(BuyResultPacket(r))
		return r, nil
	}
	if !s.open || s.closed || index < 0 || index >= len(s.items) || count <= 0 || s.userIndex(u) <= 0 {
		u.Write(BuyResultPacket(BuyUnknown))
		return BuyUnknown, invalid("buy index %d count %d", index, count)
	}
	inv := u.Inventory()
	if inv == nil {
		return fail(BuyUnknown)
	}
	si := s.items[index]
	if si.Bundles < count {
		return fail(BuyNoSlot)
	}
	qty := int64(si.PerBundle) * int64(count)
	if qty > math.MaxInt32 || !inv.CanAddItem(si.Item.ItemID, int32(qty)) {
		return fail(BuyNoSlot)
	}
	total := int64(si.Price) * int64(count)
	if total <= 0 || total > math.MaxInt32 || !inv.CanAddMoney(-int32(total)) {
		return fail(BuyNoMoney)
	}
	net := s.m.tax.Net(int32(total))
	if int64(s.money)+int64(net) > math.MaxInt32 {
		return fail(BuyHostTooMuchMoney)
	}
	sn, err := s.m.serials.Next(ctx)
	if err != nil {
		s.m.logger.Error("item serial allocation failed", zap.Int32("char_id", u.CharID), zap.Error(err))
		return fail(BuyUnknown)
	}
	bought := si.Item.Clone()
	bought.SN = sn
	bought.Quantity = int32(qty)

	var undo compensation
	if !inv.AddMoney(-int32(total)) {
		return fail(BuyNoMoney)
	}
	undo.push(func() { inv.AddMoney(int32(total)) })
	ops, ok := inv.AddItem(bought)
	if !ok {
		undo.rollback()
		return fail(BuyNoSlot)
	}

	s.money += net
	si.Bundles -= count
	s.sold = append(s.sold, SoldItemRecord{
		ItemID:    si.Item.ItemID,
		Quantity:  int32(qty),
		NetPrice:  net,
		BuyerName: u.CharName,
		Item:      bought.Clone(),
	})
	u.Write(item.MoneyPacket(inv.Money()))
	u.Write(item.OperationPacket(ops, true))

	buyerID := u.CharID
	s.m.audit.Log(audit.AuditEntry{
		TraceID:  u.TraceID,
		CharID:   &buyerID,
		CharName: u.CharName,
		Action:   audit.ActionShopSale,
		Detail: map[string]interface{}{
			"employer_id": s.employerID,
			"item_id":     si.Item.ItemID,
			"quantity":    qty,
			"gross":       total,
			"net":         net,
		},
		FieldID: u.FieldID(),
	})

	if owner := s.users[0]; owner != nil {
		owner.Write(AddSoldItemPacket(index, count, u.CharName))
	}
	if s.noMoreItem() {
		s.close(ctx, LeaveNoMoreItem)
	} else {
		s.broadcast(RefreshPacket(s.money, s.items))
	}
	return BuySuccess, nil
}

// MoveItemToInventory returns the unsold units of the entry at index to the
// owner. The entry stays when the inventory cannot take them.
func (s *EntrustedShop) MoveItemToInventory(u *player.PlayerSession, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) || s.open || s.closed || !s.isOwner(u) {
		return invalid("move item %d to inventory", index)
	}
	inv := u.Inventory()
	if inv == nil {
		return invalid("move item without inventory")
	}
	si := s.items[index]
	var ops []item.Operation
	if si.Bundles > 0 {
		var ok bool
		if ops, ok = inv.AddItem(si.Remaining()); !ok {
			return nil
		}
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	if len(ops) > 0 {
		u.Write(item.OperationPacket(ops, true))
	}
	u.Write(MoveItemToInventoryPacket(len(s.items), index))
	return nil
}

// WithdrawAll returns every entry to the owner, or nothing when the set does
// not fit.
func (s *EntrustedShop) WithdrawAll(u *player.PlayerSession) (WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.closed {
		return WithdrawUnknown, invalid("withdraw all by non-owner %d", u.CharID)
	}
	reply := func(r WithdrawResult) (WithdrawResult, error) {
		u.Write(WithdrawAllResultPacket(r))
		return r, nil
	}
	if s.open {
		return reply(WithdrawUnknown)
	}
	if len(s.items) == 0 {
		return reply(WithdrawNothing)
	}
	inv := u.Inventory()
	if inv == nil {
		return reply(WithdrawUnknown)
	}
	var returns []*item.Item
	for _, si := range s.items {
		if si.Bundles > 0 {
			returns = append(returns, si.Remaining())
		}
	}
	if !inv.CanAddItems(returns) {
		return reply(WithdrawNoSlot)
	}

	var ops []item.Operation
	var kept []*PlayerShopItem
	for _, si := range s.items {
		if si.Bundles <= 0 {
			continue
		}
		added, ok := inv.AddItem(si.Remaining())
		if !ok {
			s.m.logger.Error("withdraw all: add failed after capacity check",
				zap.Int32("char_id", u.CharID),
				zap.Int32("item_id", si.Item.ItemID))
			kept = append(kept, si)
			continue
		}
		ops = append(ops, added...)
	}
	s.items = kept
	if len(ops) > 0 {
		u.Write(item.OperationPacket(ops, true))
	}
	result := WithdrawSuccess
	if len(kept) > 0 {
		result = WithdrawNoSlot
	}
	u.Write(WithdrawAllResultPacket(result))
	u.Write(RefreshPacket(s.money, s.items))
	return result, nil
}

// WithdrawMoney moves the shop balance to the owner. It does nothing when the
// balance is empty or the owner's wallet cannot hold it.
func (s *EntrustedShop) WithdrawMoney(u *player.PlayerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.closed {
		return invalid("withdraw money by non-owner %d", u.CharID)
	}
	inv := u.Inventory()
	if s.money <= 0 || inv == nil || !inv.AddMoney(s.money) {
		return nil
	}
	s.money = 0
	u.Write(item.MoneyPacket(inv.Money()))
	u.Write(WithdrawMoneyResultPacket())
	u.Write(RefreshPacket(s.money, s.items))
	return nil
}

// Arrange drops sold-out entries.
func (s *EntrustedShop) Arrange(u *player.PlayerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.open || s.closed {
		return invalid("arrange")
	}
	kept := s.items[:0]
	for _, si := range s.items {
		if si.Bundles > 0 {
			kept = append(kept, si)
		}
	}
	clear(s.items[len(kept):])
	s.items = kept
	u.Write(ArrangePacket(s.money))
	u.Write(RefreshPacket(s.money, s.items))
	return nil
}

// DeliverBlackList replaces the block list.
func (s *EntrustedShop) DeliverBlackList(u *player.PlayerSession, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.open || s.closed {
		return invalid("deliver black list")
	}
	s.blocked = s.blocked[:0]
	for _, n := range names {
		if !contains(s.blocked, n) {
			s.blocked = append(s.blocked, n)
		}
	}
	return nil
}

// AddBlackList bars name from entering.
func (s *EntrustedShop) AddBlackList(u *player.PlayerSession, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.open || s.closed {
		return invalid("add black list")
	}
	if !contains(s.blocked, name) {
		s.blocked = append(s.blocked, name)
	}
	return nil
}

// DeleteBlackList lifts the bar on name.
func (s *EntrustedShop) DeleteBlackList(u *player.PlayerSession, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.open || s.closed {
		return invalid("delete black list")
	}
	for i, n := range s.blocked {
		if n == name {
			s.blocked = append(s.blocked[:i], s.blocked[i+1:]...)
			break
		}
	}
	return nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// Open starts selling. The expiry clock starts on the first open and keeps
// running through maintenance.
func (s *EntrustedShop) Open(u *player.PlayerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) || s.open || s.closed || len(s.items) == 0 {
		return invalid("open shop")
	}
	s.open = true
	if s.openTime.IsZero() {
		s.openTime = s.m.now()
		s.expireTime = s.openTime.Add(s.m.opts.Duration)
	}
	if s.expiry == nil {
		s.expiry = s.m.sched.AddDelay(s.taskName(), s.expireTime.Sub(s.m.now()), s.expire)
	}
	if s.field != nil {
		if !s.spawned {
			s.spawned = true
			s.field.Broadcast(EmployeeEnterFieldPacket(s))
		}
	}
	s.updateBalloon()
	s.m.logger.Info("entrusted shop opened",
		zap.Int32("employer_id", s.employerID),
		zap.Time("expires_at", s.expireTime))
	return nil
}

func (s *EntrustedShop) taskName() string {
	return fmt.Sprintf("shop-expire:%d:%d", s.employerID, s.id)
}

func (s *EntrustedShop) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.expiry.Cancelled() {
		return
	}
	s.m.logger.Info("entrusted shop expired", zap.Int32("employer_id", s.employerID))
	s.close(context.Background(), LeaveOpenTimeOver)
}

// Enter seats u. The owner entering an opened shop puts it into maintenance
// and sends the visitors away.
func (s *EntrustedShop) Enter(u *player.PlayerSession) EnterResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.enter(u)
	if result != EnterSuccess {
		u.Write(EnterResultPacket(result))
	}
	return result
}

func (s *EntrustedShop) enter(u *player.PlayerSession) EnterResult {
	if s.closed {
		return EnterNoRoom
	}
	if s.userIndex(u) >= 0 || u.Dialog() != nil {
		return EnterExistMiniRoom
	}
	if u.CharID == s.employerID {
		if s.users[0] != nil {
			return EnterExistMiniRoom
		}
		for i := 1; i < maxUsers; i++ {
			if guest := s.users[i]; guest != nil {
				guest.Write(LeavePacket(i, LeaveStartManage))
				guest.ClearDialog(s)
				s.users[i] = nil
			}
		}
		s.open = false
		s.users[0] = u
		u.SetDialog(s)
		u.Write(EnterPacket(s, 0))
		return EnterSuccess
	}
	if !s.open {
		return EnterIsManaging
	}
	if contains(s.blocked, u.CharName) {
		return EnterOnBlockedList
	}
	index := s.openSeat()
	if index < 0 {
		return EnterFull
	}
	s.broadcast(EnterUserPacket(index, u.CharName))
	s.users[index] = u
	u.SetDialog(s)
	if !contains(s.visits, u.CharName) {
		s.visits = append(s.visits, u.CharName)
	}
	u.Write(EnterPacket(s, index))
	s.updateBalloon()
	return EnterSuccess
}

// GoOut lets the owner step away while the shop keeps running. Only an open
// shop runs unattended: it alone has an expiry scheduled.
func (s *EntrustedShop) GoOut(u *player.PlayerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwner(u) {
		return invalid("go out by non-owner %d", u.CharID)
	}
	if !s.open || s.openTime.IsZero() {
		return invalid("go out of a shop that is not open")
	}
	s.users[0] = nil
	u.ClearDialog(s)
	return nil
}

// Leave vacates u's seat. The owner leaving a shop that never opened closes
// it; leaving an opened shop keeps it in maintenance.
func (s *EntrustedShop) Leave(u *player.PlayerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leave(context.Background(), u)
}

func (s *EntrustedShop) leave(ctx context.Context, u *player.PlayerSession) {
	index := s.userIndex(u)
	switch {
	case index < 0:
		u.ClearDialog(s)
	case index == 0 && s.openTime.IsZero():
		s.close(ctx, LeaveUserRequest)
	case index == 0:
		u.Write(LeavePacket(0, LeaveUserRequest))
		u.ClearDialog(s)
		s.users[0] = nil
	default:
		s.broadcast(LeavePacket(index, LeaveUserRequest))
		s.users[index] = nil
		u.ClearDialog(s)
		s.updateBalloon()
	}
}

// Close shuts the shop down for good. Stock and balance go back to the owner
// when they are online and have room, and to the mailbox otherwise.
func (s *EntrustedShop) Close(ctx context.Context, lt LeaveType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close(ctx, lt)
}

func (s *EntrustedShop) close(ctx context.Context, lt LeaveType) {
	if s.closed {
		return
	}
	s.closed = true
	s.open = false
	s.expiry.Cancel()

	owner := s.users[0]
	if owner == nil {
		owner = s.m.onlineOwner(s.employerID)
	}
	var inv item.Inventory
	if owner != nil {
		inv = owner.Inventory()
	}

	var ops []item.Operation
	rescued := 0
	for _, si := range s.items {
		if si.Bundles <= 0 {
			continue
		}
		if inv != nil {
			if added, ok := inv.AddItem(si.Remaining()); ok {
				ops = append(ops, added...)
				continue
			}
		}
		s.rescue(ctx, &mailbox.ShopItem{
			CharacterID: s.employerID,
			Item:        si.Item.Clone(),
			Price:       si.Price,
			Bundles:     si.Bundles,
		})
		rescued++
	}
	if len(ops) > 0 {
		owner.Write(item.OperationPacket(ops, false))
	}
	if s.money > 0 {
		if inv != nil && inv.AddMoney(s.money) {
			owner.Write(item.MoneyPacket(inv.Money()))
		} else {
			s.rescue(ctx, &mailbox.ShopItem{
				CharacterID: s.employerID,
				Sold:        true,
				Mesos:       s.money,
			})
			rescued++
		}
	}

	for i := 1; i < maxUsers; i++ {
		if guest := s.users[i]; guest != nil {
			guest.Write(LeavePacket(i, LeaveHostOut))
			guest.ClearDialog(s)
			s.users[i] = nil
		}
	}
	if seated := s.users[0]; seated != nil {
		seated.Write(LeavePacket(0, lt))
		seated.ClearDialog(s)
		s.users[0] = nil
	}
	if s.field != nil {
		s.field.RemoveMiniRoom(s)
		s.field.Broadcast(EmployeeLeaveFieldPacket(s.employerID))
	}
	s.m.forget(ctx, s)

	employerID := s.employerID
	s.m.audit.Log(audit.AuditEntry{
		CharID:   &employerID,
		CharName: s.employerName,
		Action:   audit.ActionShopClose,
		Detail: map[string]interface{}{
			"reason":       int8(lt),
			"money":        s.money,
			"items":        len(s.items),
			"rescued":      rescued,
			"sold":         len(s.sold),
			"owner_online": owner != nil,
		},
	})
	s.m.logger.Info("entrusted shop closed",
		zap.Int32("employer_id", s.employerID),
		zap.Int8("reason", int8(lt)),
		zap.Int("rescued", rescued))
	s.items = nil
	s.money = 0
}

// rescue writes one row to the mailbox. A failed write is not retried; it is
// logged and audited with the full row so it can be restored by hand.
func (s *EntrustedShop) rescue(ctx context.Context, row *mailbox.ShopItem) {
	employerID := s.employerID
	detail := map[string]interface{}{
		"sold":    row.Sold,
		"mesos":   row.Mesos,
		"price":   row.Price,
		"bundles": row.Bundles,
	}
	if row.Item != nil {
		detail["item_id"] = row.Item.ItemID
		detail["item_sn"] = row.Item.SN
		detail["per_bundle"] = row.Item.Quantity
	}

	var ok bool
	if row.Sold {
		ok = s.m.mailbox.SaveSold(ctx, row)
	} else {
		ok = s.m.mailbox.SaveUnsold(ctx, row)
	}
	action := audit.ActionMailboxRescue
	if !ok {
		action = audit.ActionMailboxLost
		s.m.logger.Error("mailbox write failed, shop balance lost",
			zap.Int32("employer_id", employerID),
			zap.Any("row", detail))
	}
	s.m.audit.Log(audit.AuditEntry{
		CharID:   &employerID,
		CharName: s.employerName,
		Action:   action,
		Detail:   detail,
	})
}
