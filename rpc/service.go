package rpc

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/polyrpc/polyrpc/rpcerr"
	"github.com/polyrpc/polyrpc/si"
)

// methodType holds the reflection metadata for one RPC-callable method,
// kept in the same shape the teacher repo uses (server/service.go):
// exactly one argument struct pointer in, one reply struct pointer out,
// plus an error — the idiomatic Go stand-in for spec.md's variadic
// `RemoteProcedure<R, Args...>` template parameter list.
type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Service wraps a registered receiver and the subset of its exported
// methods matching the RPC calling convention
// `func (receiver) MethodName(args *ArgsType, reply *ReplyType) error`.
type Service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType

	// pool recycles argv/replyv reflect.Values per method so a busy
	// server does not allocate a fresh pair on every call (spec.md §3:
	// "a procedure instance is acquired [...] pool-recycled").
	poolMu sync.Mutex
	pool   map[string][]*procInstance
}

type procInstance struct {
	argv, replyv reflect.Value
}

// NewService builds a Service from a pointer-to-struct receiver,
// scanning its exported methods for the RPC calling convention.
func NewService(rcvr any) (*Service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("rpc: rcvr must be a pointer, got %v", typ)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}
	s := &Service{
		name:   typ.Elem().Name(),
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
		pool:   make(map[string][]*procInstance),
	}
	s.scanMethods()
	if len(s.method) == 0 {
		return nil, fmt.Errorf("rpc: %s exposes no methods matching func(*Args, *Reply) error", s.name)
	}
	return s, nil
}

func (s *Service) scanMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		m := s.typ.Method(i)
		if m.Type.NumIn() != 3 || m.Type.NumOut() != 1 {
			continue
		}
		if m.Type.Out(0) != errorType {
			continue
		}
		if m.Type.In(1).Kind() != reflect.Ptr || m.Type.In(2).Kind() != reflect.Ptr {
			continue
		}
		s.method[m.Name] = &methodType{
			method:    m,
			ArgType:   m.Type.In(1).Elem(),
			ReplyType: m.Type.In(2).Elem(),
		}
	}
}

func (s *Service) acquire(name string, mt *methodType) *procInstance {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if list := s.pool[name]; len(list) > 0 {
		p := list[len(list)-1]
		s.pool[name] = list[:len(list)-1]
		p.argv.Elem().Set(reflect.Zero(mt.ArgType))
		p.replyv.Elem().Set(reflect.Zero(mt.ReplyType))
		return p
	}
	return &procInstance{argv: reflect.New(mt.ArgType), replyv: reflect.New(mt.ReplyType)}
}

func (s *Service) release(name string, p *procInstance) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	s.pool[name] = append(s.pool[name], p)
}

// Invoke decodes args into the method's argument struct, calls it, and
// decomposes the reply back to a SerializationInfo tree. args must have
// exactly one element (the argument struct), matching how Client.Call
// and the three Protocol adapters pack a single positional value.
func (s *Service) Invoke(methodName string, args []*si.Info) (*si.Info, error) {
	mt, ok := s.method[methodName]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", rpcerr.ErrMethodNotFound, s.name, methodName)
	}
	var argInfo *si.Info
	if len(args) > 0 {
		argInfo = args[0]
	} else {
		argInfo = si.NewVoid()
	}

	p := s.acquire(methodName, mt)
	defer s.release(methodName, p)

	if err := SIToValue(argInfo, p.argv.Interface()); err != nil {
		return nil, err
	}

	results := mt.method.Func.Call([]reflect.Value{s.rcvr, p.argv, p.replyv})
	if errv := results[0]; !errv.IsNil() {
		return nil, errv.Interface().(error)
	}

	return ValueToSI(p.replyv.Interface())
}

// ServiceRegistry maps "Service" names to their Service, per spec.md
// §4.10/§5: read-mostly under a shared lock during dispatch;
// registration is only meant to happen while the owning server is
// Stopped.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]*Service
	sealed   bool
}

// NewServiceRegistry returns an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]*Service)}
}

// Register adds rcvr's exposed methods under its struct type name.
// Returns an error if called after Seal.
func (r *ServiceRegistry) Register(rcvr any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("rpc: cannot register %T: registry is sealed (server not stopped)", rcvr)
	}
	svc, err := NewService(rcvr)
	if err != nil {
		return err
	}
	r.services[svc.name] = svc
	return nil
}

// Seal forbids further registration; rpcserver calls this on Start and
// reverses it on a full Stop.
func (r *ServiceRegistry) Seal(sealed bool) {
	r.mu.Lock()
	r.sealed = sealed
	r.mu.Unlock()
}

// Dispatch looks up "Service.Method" and invokes it.
func (r *ServiceRegistry) Dispatch(serviceMethod string, args []*si.Info) (*si.Info, error) {
	parts := strings.SplitN(serviceMethod, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("rpc: malformed method name %q, want \"Service.Method\"", serviceMethod)
	}
	r.mu.RLock()
	svc, ok := r.services[parts[0]]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: service %q", rpcerr.ErrMethodNotFound, parts[0])
	}
	return svc.Invoke(parts[1], args)
}
