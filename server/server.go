package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codetesla51/webserv/logger"
	"github.com/codetesla51/webserv/request"
	"github.com/codetesla51/webserv/timer"
	"github.com/codetesla51/webserv/workerpool"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server: closed")

// reapInterval caps how long expired connections can linger
const reapInterval = 500 * time.Millisecond

// maxAcceptDelay caps the backoff after repeated Accept failures
const maxAcceptDelay = time.Second

// Server accepts connections and hands each one, start to finish, to a
// single worker of a fixed pool.
type Server struct {
	cfg    *Config
	log    *logger.Logger
	pool   *workerpool.Pool
	timer  *timer.Timer
	runner request.CGIRunner

	mu     sync.Mutex
	ln     net.Listener
	conns  map[uint64]net.Conn
	closed atomic.Bool
	done   chan struct{}
	reaped chan struct{}

	nextID    atomic.Uint64
	userCount atomic.Int64
}

// New builds a server from cfg. A nil logger discards everything.
func New(cfg *Config, log *logger.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}

	s := &Server{
		cfg:   cfg,
		log:   log,
		conns: make(map[uint64]net.Conn),
		done:  make(chan struct{}),
		runner: &request.ExecRunner{
			Path:    cfg.CGIPath,
			Timeout: cfg.CGITimeout,
		},
	}
	s.pool = workerpool.New(cfg.ThreadNum, workerpool.WithPanicHandler(func(v any, stack []byte) {
		s.log.Errorf("PANIC recovered: %v\n%s", v, stack)
	}))

	if cfg.TimeoutMS > 0 {
		s.timer = timer.New()
		s.reaped = make(chan struct{})
		go s.reap()
	}
	return s
}

// SetRunner replaces the credential process runner
func (s *Server) SetRunner(r request.CGIRunner) {
	s.runner = r
}

// ListenAndServe listens on the configured port and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		s.log.Errorf("Listen error: %v", err)
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln. Each accepted connection becomes
// one task in the worker pool.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.log.Infof("========== Server init ==========")
	s.log.Infof("Listen: %s, KeepAlive: %t", ln.Addr(), s.cfg.EnableKeepAlive)
	s.log.Infof("LogSys level: %d", s.log.Level())
	s.log.Infof("srcDir: %s", s.cfg.ResourcesDir)
	s.log.Infof("ThreadPool num: %d, idle timeout: %dms", s.pool.Size(), s.cfg.TimeoutMS)

	var tempDelay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > maxAcceptDelay {
				tempDelay = maxAcceptDelay
			}
			s.log.Errorf("Accept error: %v; retrying in %v", err, tempDelay)
			select {
			case <-s.done:
				return ErrServerClosed
			case <-time.After(tempDelay):
			}
			continue
		}
		tempDelay = 0

		if err := s.pool.Submit(func() { s.handle(nc) }); err != nil {
			s.log.Warnf("Dropping connection from %s: %v", nc.RemoteAddr(), err)
			nc.Close()
		}
	}
}

// Addr returns the listener address once Serve has started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// UserCount returns the number of open connections
func (s *Server) UserCount() int64 {
	return s.userCount.Load()
}

// Shutdown stops accepting, wakes connections parked in a read and waits
// for every worker. Requests already being processed run to completion.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closed.Store(true)
	close(s.done)

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	now := time.Now()
	for _, nc := range s.conns {
		nc.SetReadDeadline(now)
	}
	s.mu.Unlock()

	s.pool.Shutdown()
	if s.reaped != nil {
		<-s.reaped
	}
	s.log.Infof("========== Server stop ==========")
	return err
}

func (s *Server) track(id uint64, nc net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = nc
	if s.closed.Load() {
		nc.SetReadDeadline(time.Now())
	}
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// armRead sets the read deadline unless shutdown already expired it
func (s *Server) armRead(nc net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.cfg.ReadTimeout > 0 {
		return nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	return nil
}

// reap closes connections whose idle deadline passed
func (s *Server) reap() {
	defer close(s.reaped)

	t := time.NewTimer(reapInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
		}

		d := s.timer.NextTick()
		if d < 0 || d > reapInterval {
			d = reapInterval
		}
		t.Reset(d)
	}
}

// buildResponse picks the body for a parsed request: the captured
// credential payload if there is one, otherwise the static file.
func (s *Server) buildResponse(req *request.Request, parseErr error) *Response {
	if parseErr != nil {
		return s.errorResponse(400, false, "Invalid request line")
	}
	keepAlive := s.cfg.EnableKeepAlive && req.IsKeepAlive()

	if captured := req.CapturedResponse(); captured != "" {
		return &Response{
			Status:      200,
			ContentType: "application/json",
			KeepAlive:   keepAlive,
			Body:        []byte(captured),
			Headers:     s.cfg.Headers,
		}
	}

	file, status := resolveStatic(s.cfg.ResourcesDir, req.Path())
	if status != 200 {
		return s.errorResponse(status, keepAlive, req.Path())
	}
	content, ok := readFileContent(file)
	if !ok {
		return s.errorResponse(404, keepAlive, req.Path())
	}
	return &Response{
		Status:      200,
		ContentType: getContentType(file),
		KeepAlive:   keepAlive,
		Body:        content,
		Headers:     s.cfg.Headers,
	}
}

// errorResponse serves the status page from disk when present
func (s *Server) errorResponse(status int, keepAlive bool, message string) *Response {
	resp := &Response{
		Status:      status,
		ContentType: "text/html",
		KeepAlive:   keepAlive,
		Headers:     s.cfg.Headers,
	}
	if page, ok := errorPages[status]; ok {
		if file, st := resolveStatic(s.cfg.ResourcesDir, page); st == 200 {
			if content, ok := readFileContent(file); ok {
				resp.Body = content
				return resp
			}
		}
	}
	resp.Body = errorContent(status, message)
	return resp
}
