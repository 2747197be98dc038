package server

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/codetesla51/webserv/buffer"
	"github.com/codetesla51/webserv/request"
	"golang.org/x/sys/unix"
)

var errNoRawConn = errors.New("server: connection does not expose a file descriptor")

// conn is one client connection, owned by a single worker for its
// whole lifetime.
type conn struct {
	id  uint64
	srv *Server
	nc  net.Conn
	rc  syscall.RawConn
	in  *buffer.Buffer
	out *buffer.Buffer
	req *request.Request
}

// handle runs a connection until the client leaves, keep-alive ends or
// the idle timer closes it.
func (s *Server) handle(nc net.Conn) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		s.log.Errorf("%v: %T", errNoRawConn, nc)
		nc.Close()
		return
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		s.log.Errorf("SyscallConn: %v", err)
		nc.Close()
		return
	}

	c := &conn{
		id:  s.nextID.Add(1),
		srv: s,
		nc:  nc,
		rc:  rc,
		in:  getBuffer(&inputBufferPool),
		out: getBuffer(&outputBufferPool),
		req: request.New(s.runner, s.log),
	}
	defer c.close()

	defer func() {
		if err := recover(); err != nil {
			s.log.Errorf("PANIC recovered: %v\n%s", err, debug.Stack())
			c.out.RetrieveAll()
			c.out.Append(CreateResponseBytes(500, "text/plain", false, []byte("Internal server error occurred")))
			c.write()
		}
	}()

	s.track(c.id, nc)
	count := s.userCount.Add(1)
	if s.timer != nil {
		s.timer.Add(c.id, s.cfg.IdleTimeout(), func() {
			s.log.Infof("Client[%d] idle timeout", c.id)
			nc.Close()
		})
	}
	s.log.Infof("Client[%d](%s) in, userCount:%d", c.id, nc.RemoteAddr(), count)

	c.serve()
}

func (c *conn) serve() {
	for {
		n, err := c.read()
		if err != nil || n <= 0 {
			if err != nil {
				c.srv.log.Debugf("Client[%d] read: %v", c.id, err)
			}
			return
		}

		keepAlive, ok := c.process()
		if err := c.write(); err != nil {
			c.srv.log.Debugf("Client[%d] write: %v", c.id, err)
			return
		}
		if !ok || !keepAlive {
			return
		}
		if c.srv.timer != nil {
			c.srv.timer.Adjust(c.id, c.srv.cfg.IdleTimeout())
		}
	}
}

// read fills the input buffer with one readv. EAGAIN parks the goroutine
// in the runtime poller until the socket is readable again.
func (c *conn) read() (int, error) {
	if err := c.srv.armRead(c.nc); err != nil {
		return 0, err
	}

	var n int
	var opErr error
	err := c.rc.Read(func(fd uintptr) bool {
		for {
			n, opErr = c.in.ReadFd(int(fd))
			if opErr != unix.EINTR {
				break
			}
		}
		return opErr != unix.EAGAIN
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	return n, nil
}

// write drains the output buffer, retrying partial writes
func (c *conn) write() error {
	if c.srv.cfg.WriteTimeout > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
	}

	for c.out.ReadableBytes() > 0 {
		var opErr error
		err := c.rc.Write(func(fd uintptr) bool {
			for {
				_, opErr = c.out.WriteFd(int(fd))
				if opErr != unix.EINTR {
					break
				}
			}
			return opErr != unix.EAGAIN
		})
		if err != nil {
			return err
		}
		if opErr != nil {
			return opErr
		}
	}
	c.out.RetrieveAll()
	return nil
}

// process parses what was read and stages the response. ok is false
// when the connection must close after the response goes out.
func (c *conn) process() (keepAlive bool, ok bool) {
	c.req.Init()

	if limit := c.srv.cfg.MaxHeaderSize; limit > 0 && c.in.ReadableBytes() > limit {
		c.in.RetrieveAll()
		resp := c.srv.errorResponse(400, false, "Request too large")
		resp.WriteTo(c.out)
		c.logAccess(resp.Status)
		return false, false
	}

	err := c.req.Parse(context.Background(), c.in)
	if err != nil {
		c.in.RetrieveAll()
	}
	resp := c.srv.buildResponse(c.req, err)
	resp.WriteTo(c.out)
	c.logAccess(resp.Status)

	return resp.KeepAlive, err == nil
}

func (c *conn) logAccess(status int) {
	c.srv.log.Infof("%s %s %d", c.req.Method(), c.req.Path(), status)
	if c.srv.cfg.EnableLogging {
		logRequest(c.req.Method(), c.req.Path(), status)
	}
}

func (c *conn) close() {
	if c.srv.timer != nil {
		c.srv.timer.Cancel(c.id)
	}
	c.srv.untrack(c.id)
	c.nc.Close()
	count := c.srv.userCount.Add(-1)
	c.srv.log.Infof("Client[%d] quit, userCount:%d", c.id, count)

	putBuffer(&inputBufferPool, c.in)
	putBuffer(&outputBufferPool, c.out)
}
