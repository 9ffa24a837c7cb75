// Package memstore is an in-memory staging store. It records every call and
// can be told to fail chosen operations.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Faultbox/chimera-importer/internal/store"
)

// Call is one recorded operation.
type Call struct {
	Op     string
	Target store.Target
	Code   int // lod code for metadata, JSON and texture calls
	Index  int // part or chunk index
	Name   string
	Size   int
}

// Object is the stored state of one target.
type Object struct {
	Type          store.ObjectType
	Locked        bool
	MultiMaterial bool
	Lods          map[int]store.LodMetadata
	Parts         map[int][]byte
	Chunks        map[[2]int][]byte // (code, chunk)
	Textures      map[int]store.Texture
}

// PartCount returns the number of raw mesh parts.
func (o *Object) PartCount() int {
	return len(o.Parts)
}

// MeshBytes reassembles the raw mesh parts in order.
func (o *Object) MeshBytes() []byte {
	idx := make([]int, 0, len(o.Parts))
	for i := range o.Parts {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	var out []byte
	for _, i := range idx {
		out = append(out, o.Parts[i]...)
	}
	return out
}

// FailFunc decides whether a call fails. A nil return lets the call through.
type FailFunc func(c Call) error

// Store keeps objects in memory. The zero value is not usable; call New.
type Store struct {
	mu         sync.Mutex
	objects    map[string]*Object
	calls      []Call
	fail       []FailFunc
	connectErr error
	conns      int
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{objects: make(map[string]*Object)}
}

// FailConnect makes every later Connect fail with a ConnectionError wrapping err.
func (s *Store) FailConnect(err error) {
	s.mu.Lock()
	s.connectErr = err
	s.mu.Unlock()
}

// FailOn makes every later call to op fail with a QueryError wrapping err.
func (s *Store) FailOn(op string, err error) {
	s.FailWhen(func(c Call) error {
		if c.Op == op {
			return err
		}
		return nil
	})
}

// FailWhen installs a failure rule.
func (s *Store) FailWhen(fn FailFunc) {
	s.mu.Lock()
	s.fail = append(s.fail, fn)
	s.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (s *Store) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Connections returns how many connections were opened.
func (s *Store) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Object returns the stored state of t.
func (s *Store) Object(t store.Target) (*Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[t.Key()]
	return o, ok
}

// Connect opens a connection.
func (s *Store) Connect(ctx context.Context) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.ConnectionError{Op: store.OpConnect, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return nil, &store.ConnectionError{Op: store.OpConnect, Err: s.connectErr}
	}
	s.conns++
	return &conn{s: s}, nil
}

type conn struct {
	s      *Store
	closed bool
}

// do records c and runs apply under the store lock unless a rule fails it.
func (c *conn) do(ctx context.Context, call Call, apply func(o *Object) error) error {
	if c.closed {
		return &store.ConnectionError{Op: call.Op, Err: fmt.Errorf("connection closed")}
	}
	if err := ctx.Err(); err != nil {
		return &store.ConnectionError{Op: call.Op, Err: err}
	}

	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
	for _, fn := range s.fail {
		if err := fn(call); err != nil {
			return &store.QueryError{Op: call.Op, Target: call.Target, Err: err}
		}
	}

	o := s.objects[call.Target.Key()]
	if call.Op == store.OpPreinitialize {
		if o != nil && call.Target.IsNew {
			return &store.QueryError{Op: call.Op, Target: call.Target, Err: store.ErrObjectExists}
		}
		o = &Object{
			Type:     call.Target.Type,
			Lods:     make(map[int]store.LodMetadata),
			Parts:    make(map[int][]byte),
			Chunks:   make(map[[2]int][]byte),
			Textures: make(map[int]store.Texture),
		}
		s.objects[call.Target.Key()] = o
	}
	if o == nil {
		return &store.QueryError{Op: call.Op, Target: call.Target, Err: store.ErrUnknownObject}
	}
	if err := apply(o); err != nil {
		return &store.QueryError{Op: call.Op, Target: call.Target, Err: err}
	}
	return nil
}

func (c *conn) PreinitializeObject(ctx context.Context, t store.Target) error {
	return c.do(ctx, Call{Op: store.OpPreinitialize, Target: t}, func(o *Object) error {
		o.Locked = true
		return nil
	})
}

func (c *conn) MarkMultiMaterial(ctx context.Context, t store.Target) error {
	return c.do(ctx, Call{Op: store.OpMarkMultiMaterial, Target: t}, func(o *Object) error {
		o.MultiMaterial = true
		return nil
	})
}

func (c *conn) UpdateLodMetadata(ctx context.Context, t store.Target, md store.LodMetadata) error {
	return c.do(ctx, Call{Op: store.OpUpdateLodMetadata, Target: t, Code: md.Code, Index: md.Parts}, func(o *Object) error {
		o.Lods[md.Code] = md
		return nil
	})
}

func (c *conn) UploadMeshPart(ctx context.Context, t store.Target, part int, data []byte) error {
	call := Call{Op: store.OpUploadMeshPart, Target: t, Index: part, Size: len(data)}
	return c.do(ctx, call, func(o *Object) error {
		o.Parts[part] = append([]byte(nil), data...)
		return nil
	})
}

func (c *conn) UploadJSONChunk(ctx context.Context, t store.Target, code, chunk int, data []byte) error {
	call := Call{Op: store.OpUploadJSONChunk, Target: t, Code: code, Index: chunk, Size: len(data)}
	return c.do(ctx, call, func(o *Object) error {
		o.Chunks[[2]int{code, chunk}] = append([]byte(nil), data...)
		return nil
	})
}

func (c *conn) UploadTexture(ctx context.Context, t store.Target, code int, tex store.Texture) error {
	call := Call{Op: store.OpUploadTexture, Target: t, Code: code, Name: tex.Name, Size: len(tex.Data)}
	return c.do(ctx, call, func(o *Object) error {
		tex.Data = append([]byte(nil), tex.Data...)
		o.Textures[code] = tex
		return nil
	})
}

func (c *conn) ClearLock(ctx context.Context, t store.Target) error {
	return c.do(ctx, Call{Op: store.OpClearLock, Target: t}, func(o *Object) error {
		if !o.Locked {
			return store.ErrNotLocked
		}
		o.Locked = false
		return nil
	})
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}
