package player

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/packet"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Dialog is the interactive window a session currently has open, such as a
// mini-room. Leave is called when the session closes with the dialog open.
type Dialog interface {
	Leave(s *PlayerSession)
}

// ExpeditionState mirrors the central server's view of this character's
// expedition membership. ID is zero when the character is in no expedition.
type ExpeditionState struct {
	ID          int32
	MemberIndex int8
	Master      bool
}

// PlayerSession is one connected character on this channel.
type PlayerSession struct {
	AccountID int64
	CharID    int32
	CharName  string
	ChannelID int32

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string

	mu         sync.Mutex
	level      int16
	job        int16
	fieldID    int32
	partyID    int32
	partyBoss  bool
	inventory  item.Inventory
	dialog     Dialog
	expedition ExpeditionState
	closeOnce  sync.Once
	logger     *zap.Logger
}

// NewPlayerSession creates a session and starts its write goroutine.
func NewPlayerSession(accountID int64, charID int32, conn *websocket.Conn, logger *zap.Logger) *PlayerSession {
	s := &PlayerSession{
		AccountID: accountID,
		CharID:    charID,
		Conn:      conn,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		logger:    logger,
	}
	go s.writePump()
	return s
}

// NewDetachedSession creates a session with no socket, for in-process callers
// and tests. Frames accumulate in SendChan.
func NewDetachedSession(charID int32, name string, inv item.Inventory) *PlayerSession {
	return &PlayerSession{
		CharID:    charID,
		CharName:  name,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		inventory: inv,
		logger:    zap.NewNop(),
	}
}

// writePump drains SendChan and writes binary frames to the WebSocket.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *PlayerSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int32("char_id", s.CharID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Write queues an encoded packet. Drops it if the session is closed or its
// buffer is full.
func (s *PlayerSession) Write(out *packet.OutPacket) {
	s.SendRaw(out.Bytes())
}

// SendRaw sends raw bytes non-blocking. Drops if channel full or closed.
func (s *PlayerSession) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.Int32("char_id", s.CharID))
	}
}

// Close signals the writePump to shut down.
func (s *PlayerSession) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// Dispose tears down the connection after the client sent input that is
// invalid for the current state.
func (s *PlayerSession) Dispose(reason string) {
	s.logger.Warn("disposing session",
		zap.Int32("char_id", s.CharID),
		zap.String("reason", reason))
	s.Close()
}

// IsClosed returns true if the session has been closed.
func (s *PlayerSession) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *PlayerSession) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}

// Inventory returns the character's live inventory.
func (s *PlayerSession) Inventory() item.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory
}

// SetInventory installs the character's live inventory.
func (s *PlayerSession) SetInventory(inv item.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = inv
}

// Dialog returns the open dialog, or nil.
func (s *PlayerSession) Dialog() Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog
}

// SetDialog replaces the open dialog; nil clears it.
func (s *PlayerSession) SetDialog(d Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialog = d
}

// ClearDialog clears the open dialog only if it is still d.
func (s *PlayerSession) ClearDialog(d Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == d {
		s.dialog = nil
	}
}

// SetProfile updates level and job.
func (s *PlayerSession) SetProfile(level, job int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
	s.job = job
}

// Profile returns level and job.
func (s *PlayerSession) Profile() (level, job int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, s.job
}

// SetField records the field the character is standing in.
func (s *PlayerSession) SetField(fieldID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldID = fieldID
}

// FieldID returns the field the character is standing in.
func (s *PlayerSession) FieldID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldID
}

// SetParty records the character's sub-group as last reported by the central server.
func (s *PlayerSession) SetParty(partyID int32, boss bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partyID = partyID
	s.partyBoss = boss
}

// Party returns the sub-group id and whether the character leads it.
func (s *PlayerSession) Party() (partyID int32, boss bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partyID, s.partyBoss
}

// SetExpedition records the central server's membership view.
func (s *PlayerSession) SetExpedition(st ExpeditionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expedition = st
}

// Expedition returns the last membership view pushed by the central server.
func (s *PlayerSession) Expedition() ExpeditionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expedition
}
