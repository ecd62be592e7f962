package wayland

import (
	"errors"
	"fmt"
)

const InterfaceToplevelManager = "zwlr_foreign_toplevel_manager_v1"

// Highest zwlr_foreign_toplevel_manager_v1 version this client understands.
const toplevelManagerVersion = 3

// zwlr_foreign_toplevel_manager_v1 opcodes.
const (
	managerStop uint16 = 0

	managerEventToplevel uint16 = 0
	managerEventFinished uint16 = 1
)

// zwlr_foreign_toplevel_handle_v1 opcodes.
const (
	handleSetMaximized   uint16 = 0
	handleUnsetMaximized uint16 = 1
	handleSetMinimized   uint16 = 2
	handleActivate       uint16 = 4
	handleClose          uint16 = 5
	handleDestroy        uint16 = 7

	handleEventTitle       uint16 = 0
	handleEventAppID       uint16 = 1
	handleEventOutputEnter uint16 = 2
	handleEventOutputLeave uint16 = 3
	handleEventState       uint16 = 4
	handleEventDone        uint16 = 5
	handleEventClosed      uint16 = 6
	handleEventParent      uint16 = 7
)

// ToplevelState is one entry of the state array sent with a state event.
type ToplevelState uint32

const (
	StateMaximized  ToplevelState = 0
	StateMinimized  ToplevelState = 1
	StateActivated  ToplevelState = 2
	StateFullscreen ToplevelState = 3
)

// ErrUnknownObject is returned for requests against a handle that is not
// (or no longer) known to the connection.
var ErrUnknownObject = errors.New("wayland: unknown toplevel handle")

type ToplevelEventKind int

const (
	ToplevelNew ToplevelEventKind = iota
	ToplevelTitle
	ToplevelAppID
	ToplevelStateChanged
	ToplevelDone
	ToplevelClosed
	ToplevelFinished
)

// String returns the protocol name of the event.
func (k ToplevelEventKind) String() string {
	switch k {
	case ToplevelNew:
		return "new"
	case ToplevelTitle:
		return "title"
	case ToplevelAppID:
		return "app_id"
	case ToplevelStateChanged:
		return "state"
	case ToplevelDone:
		return "done"
	case ToplevelClosed:
		return "closed"
	case ToplevelFinished:
		return "finished"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ToplevelEvent is a decoded manager or handle event. Text carries the title
// or app id; States carries the full state set of a state event.
type ToplevelEvent struct {
	Kind   ToplevelEventKind
	Handle ObjectID
	Text   string
	States []ToplevelState
}

// ToplevelManager is a bound zwlr_foreign_toplevel_manager_v1. Every event
// of the manager and of the handles it announces is delivered to one sink.
type ToplevelManager struct {
	conn    *Conn
	id      ObjectID
	version uint32
	sink    func(ToplevelEvent)
	handles map[ObjectID]*toplevelHandle
}

// BindToplevelManager binds g and routes its events to sink.
func BindToplevelManager(r *Registry, g Global, sink func(ToplevelEvent)) (*ToplevelManager, error) {
	version := g.Version
	if version > toplevelManagerVersion {
		version = toplevelManagerVersion
	}
	m := &ToplevelManager{
		conn:    r.conn,
		version: version,
		sink:    sink,
		handles: make(map[ObjectID]*toplevelHandle),
	}
	id, err := r.bind(g, version, m)
	if err != nil {
		return nil, err
	}
	m.id = id
	return m, nil
}

// ID returns the manager's object id.
func (m *ToplevelManager) ID() ObjectID {
	return m.id
}

// Version returns the negotiated protocol version.
func (m *ToplevelManager) Version() uint32 {
	return m.version
}

// Stop asks the compositor to stop sending toplevel events.
func (m *ToplevelManager) Stop() error {
	return m.conn.send(NewEncoder(m.id, managerStop))
}

func (m *ToplevelManager) dispatch(opcode uint16, dec *Decoder) error {
	switch opcode {
	case managerEventToplevel:
		id, err := dec.ReadNewID()
		if err != nil {
			return err
		}
		h := &toplevelHandle{manager: m, id: id}
		m.handles[id] = h
		m.conn.register(id, h)
		m.sink(ToplevelEvent{Kind: ToplevelNew, Handle: id})
	case managerEventFinished:
		m.sink(ToplevelEvent{Kind: ToplevelFinished, Handle: m.id})
	}
	return nil
}

func (m *ToplevelManager) request(h ObjectID, opcode uint16, args func(*Encoder)) error {
	if _, ok := m.handles[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, h)
	}
	e := NewEncoder(h, opcode)
	if args != nil {
		args(e)
	}
	return m.conn.send(e)
}

// SetMaximized queues a maximize request for h.
func (m *ToplevelManager) SetMaximized(h ObjectID) error {
	return m.request(h, handleSetMaximized, nil)
}

// UnsetMaximized queues an unmaximize request for h.
func (m *ToplevelManager) UnsetMaximized(h ObjectID) error {
	return m.request(h, handleUnsetMaximized, nil)
}

// SetMinimized queues a minimize request for h.
func (m *ToplevelManager) SetMinimized(h ObjectID) error {
	return m.request(h, handleSetMinimized, nil)
}

// Activate focuses h on behalf of seat.
func (m *ToplevelManager) Activate(h ObjectID, seat ObjectID) error {
	return m.request(h, handleActivate, func(e *Encoder) {
		e.PutObject(seat)
	})
}

// Close queues a close request for h.
func (m *ToplevelManager) Close(h ObjectID) error {
	return m.request(h, handleClose, nil)
}

type toplevelHandle struct {
	manager *ToplevelManager
	id      ObjectID
}

func (h *toplevelHandle) dispatch(opcode uint16, dec *Decoder) error {
	m := h.manager
	switch opcode {
	case handleEventTitle, handleEventAppID:
		s, err := dec.ReadString()
		if err != nil {
			return err
		}
		kind := ToplevelTitle
		if opcode == handleEventAppID {
			kind = ToplevelAppID
		}
		m.sink(ToplevelEvent{Kind: kind, Handle: h.id, Text: s})
	case handleEventState:
		raw, err := dec.ReadArray()
		if err != nil {
			return err
		}
		words := Uint32s(raw)
		states := make([]ToplevelState, len(words))
		for i, w := range words {
			states[i] = ToplevelState(w)
		}
		m.sink(ToplevelEvent{Kind: ToplevelStateChanged, Handle: h.id, States: states})
	case handleEventDone:
		m.sink(ToplevelEvent{Kind: ToplevelDone, Handle: h.id})
	case handleEventClosed:
		delete(m.handles, h.id)
		m.sink(ToplevelEvent{Kind: ToplevelClosed, Handle: h.id})
		err := m.conn.send(NewEncoder(h.id, handleDestroy))
		m.conn.forget(h.id)
		return err
	case handleEventOutputEnter, handleEventOutputLeave, handleEventParent:
	}
	return nil
}
