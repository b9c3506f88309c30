// Package listeners runs the auxiliary scale sockets: TCP echo servers
// started on demand and UDP sockets that keep the latest reading.
package listeners

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Spok95/batch-weighing/internal/apperr"
)

type Kind string

const (
	KindTCP Kind = "tcp"
	KindUDP Kind = "udp"
)

const readBuf = 4096

type Info struct {
	Kind      Kind      `json:"kind"`
	Addr      string    `json:"addr"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"startedAt"`
}

// Reading is the last datagram received by any UDP listener.
type Reading struct {
	Value      string    `json:"value"`
	From       string    `json:"from"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type entry struct {
	info  Info
	close func() error
	done  chan struct{}

	// guarded by Registry.mu
	conns   map[net.Conn]struct{}
	stopped bool
}

// detach marks e stopped and hands back its open connections. The caller
// holds r.mu.
func (e *entry) detach() []net.Conn {
	e.stopped = true
	conns := make([]net.Conn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	e.conns = nil
	return conns
}

// shutdown closes the listener, waits for its loop and drops conns.
func (e *entry) shutdown(conns []net.Conn) error {
	err := e.close()
	<-e.done
	for _, c := range conns {
		_ = c.Close()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Registry owns every running listener. It is created by the composition
// root and closed on shutdown.
type Registry struct {
	log *slog.Logger

	mu      sync.Mutex
	items   map[string]*entry
	latest  *Reading
	closing bool
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log, items: map[string]*entry{}}
}

func key(kind Kind, port int) string { return string(kind) + "/" + strconv.Itoa(port) }

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

// Start opens a listener on addr. Starting a second listener of the same
// kind on the same port is a conflict.
func (r *Registry) Start(ctx context.Context, kind Kind, addr string) (Info, error) {
	if port, err := portOf(addr); err == nil && port != 0 {
		r.mu.Lock()
		_, busy := r.items[key(kind, port)]
		r.mu.Unlock()
		if busy {
			return Info{}, fmt.Errorf("%w: %s server already running on port %d", apperr.ErrConflict, kind, port)
		}
	} else if err != nil {
		return Info{}, fmt.Errorf("%w: %w", apperr.ErrBadRequest, err)
	}

	var (
		e   *entry
		err error
	)
	lc := net.ListenConfig{}
	switch kind {
	case KindTCP:
		e, err = r.startTCP(ctx, lc, addr)
	case KindUDP:
		e, err = r.startUDP(ctx, lc, addr)
	default:
		return Info{}, fmt.Errorf("%w: unknown listener kind %q", apperr.ErrBadRequest, kind)
	}
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", apperr.ErrConflict, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(kind, e.info.Port)
	if _, busy := r.items[k]; busy || r.closing {
		_ = e.close()
		return Info{}, fmt.Errorf("%w: %s server already running on port %d", apperr.ErrConflict, kind, e.info.Port)
	}
	r.items[k] = e
	r.log.Info("listener started", "kind", kind, "addr", e.info.Addr)
	return e.info, nil
}

func (r *Registry) startTCP(ctx context.Context, lc net.ListenConfig, addr string) (*entry, error) {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	port, _ := portOf(ln.Addr().String())
	e := &entry{
		info:  Info{Kind: KindTCP, Addr: ln.Addr().String(), Port: port, StartedAt: time.Now().UTC()},
		close: ln.Close,
		done:  make(chan struct{}),
		conns: map[net.Conn]struct{}{},
	}
	go func() {
		defer close(e.done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					r.log.Warn("tcp accept failed", "addr", e.info.Addr, "err", err)
				}
				return
			}
			go r.echo(e, conn)
		}
	}()
	return e, nil
}

// echo answers every chunk with "Server response: <chunk>".
func (r *Registry) echo(e *entry, conn net.Conn) {
	if !r.track(e, conn) {
		_ = conn.Close()
		return
	}
	defer r.untrack(e, conn)

	buf := make([]byte, readBuf)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			r.log.Debug("tcp data received", "from", conn.RemoteAddr().String(), "data", string(buf[:n]))
			if _, werr := conn.Write(append([]byte("Server response: "), buf[:n]...)); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *Registry) track(e *entry, c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing || e.stopped {
		return false
	}
	e.conns[c] = struct{}{}
	return true
}

func (r *Registry) untrack(e *entry, c net.Conn) {
	r.mu.Lock()
	delete(e.conns, c)
	r.mu.Unlock()
	_ = c.Close()
}

func (r *Registry) startUDP(ctx context.Context, lc net.ListenConfig, addr string) (*entry, error) {
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	port, _ := portOf(pc.LocalAddr().String())
	e := &entry{
		info:  Info{Kind: KindUDP, Addr: pc.LocalAddr().String(), Port: port, StartedAt: time.Now().UTC()},
		close: pc.Close,
		done:  make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		buf := make([]byte, readBuf)
		for {
			n, from, err := pc.ReadFrom(buf)
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					r.log.Warn("udp read failed", "addr", e.info.Addr, "err", err)
				}
				return
			}
			rd := Reading{Value: string(buf[:n]), From: from.String(), ReceivedAt: time.Now().UTC()}
			r.mu.Lock()
			r.latest = &rd
			r.mu.Unlock()
		}
	}()
	return e, nil
}

// Stop closes the listener of kind on port together with the connections
// it accepted, and reports whether one ran.
func (r *Registry) Stop(kind Kind, port int) (bool, error) {
	r.mu.Lock()
	e, ok := r.items[key(kind, port)]
	var conns []net.Conn
	if ok {
		delete(r.items, key(kind, port))
		conns = e.detach()
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	err := e.shutdown(conns)
	r.log.Info("listener stopped", "kind", kind, "port", port, "connections", len(conns))
	return true, err
}

func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Port < out[j].Port
	})
	return out
}

func (r *Registry) Latest() (Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return Reading{}, false
	}
	return *r.latest, true
}

// Close stops every listener and drops open TCP connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closing = true
	items := r.items
	r.items = map[string]*entry{}
	conns := make(map[*entry][]net.Conn, len(items))
	for _, e := range items {
		conns[e] = e.detach()
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range items {
		if err := e.shutdown(conns[e]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
