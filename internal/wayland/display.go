package wayland

// wl_display opcodes.
const (
	displaySync        uint16 = 0
	displayGetRegistry uint16 = 1

	displayEventError    uint16 = 0
	displayEventDeleteID uint16 = 1
)

// wl_registry opcodes.
const (
	registryBind uint16 = 0

	registryEventGlobal       uint16 = 0
	registryEventGlobalRemove uint16 = 1
)

const InterfaceSeat = "wl_seat"

type display struct {
	conn *Conn
}

func (d *display) dispatch(opcode uint16, dec *Decoder) error {
	switch opcode {
	case displayEventError:
		obj, err := dec.ReadObject()
		if err != nil {
			return err
		}
		code, err := dec.ReadUint()
		if err != nil {
			return err
		}
		msg, err := dec.ReadString()
		if err != nil {
			return err
		}
		return &ProtocolError{Object: obj, Code: code, Message: msg}
	case displayEventDeleteID:
		id, err := dec.ReadUint()
		if err != nil {
			return err
		}
		d.conn.deleteID(ObjectID(id))
	}
	return nil
}

type callback struct {
	done func(data uint32)
}

func (cb *callback) dispatch(opcode uint16, dec *Decoder) error {
	if opcode != 0 {
		return nil
	}
	data, err := dec.ReadUint()
	if err != nil {
		return err
	}
	cb.done(data)
	return nil
}

// Global is one entry advertised by wl_registry.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry tracks the globals advertised by the compositor.
type Registry struct {
	conn    *Conn
	id      ObjectID
	globals []Global
}

// GetRegistry creates the registry object. Globals arrive with the next
// Roundtrip.
func (c *Conn) GetRegistry() (*Registry, error) {
	r := &Registry{conn: c, id: c.newID()}
	c.register(r.id, r)
	e := NewEncoder(DisplayID, displayGetRegistry)
	e.PutNewID(r.id)
	if err := c.send(e); err != nil {
		return nil, err
	}
	return r, nil
}

// Globals returns the currently advertised globals in announcement order.
func (r *Registry) Globals() []Global {
	out := make([]Global, len(r.globals))
	copy(out, r.globals)
	return out
}

// Find returns the first global implementing iface.
func (r *Registry) Find(iface string) (Global, bool) {
	for _, g := range r.globals {
		if g.Interface == iface {
			return g, true
		}
	}
	return Global{}, false
}

func (r *Registry) bind(g Global, version uint32, obj object) (ObjectID, error) {
	id := r.conn.newID()
	r.conn.register(id, obj)
	e := NewEncoder(r.id, registryBind)
	e.PutUint(g.Name)
	e.PutString(g.Interface)
	e.PutUint(version)
	e.PutNewID(id)
	if err := r.conn.send(e); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Registry) dispatch(opcode uint16, dec *Decoder) error {
	switch opcode {
	case registryEventGlobal:
		name, err := dec.ReadUint()
		if err != nil {
			return err
		}
		iface, err := dec.ReadString()
		if err != nil {
			return err
		}
		version, err := dec.ReadUint()
		if err != nil {
			return err
		}
		r.globals = append(r.globals, Global{Name: name, Interface: iface, Version: version})
	case registryEventGlobalRemove:
		name, err := dec.ReadUint()
		if err != nil {
			return err
		}
		for i, g := range r.globals {
			if g.Name == name {
				r.globals = append(r.globals[:i], r.globals[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Seat is a bound wl_seat. Only its id is needed, as the argument of
// activation requests.
type Seat struct {
	id ObjectID
}

// BindSeat binds a wl_seat global at version 1.
func BindSeat(r *Registry, g Global) (*Seat, error) {
	s := &Seat{}
	id, err := r.bind(g, 1, s)
	if err != nil {
		return nil, err
	}
	s.id = id
	return s, nil
}

// ID returns the seat's object id.
func (s *Seat) ID() ObjectID {
	return s.id
}

func (s *Seat) dispatch(uint16, *Decoder) error {
	return nil
}
