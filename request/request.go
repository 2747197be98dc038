package request

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/codetesla51/webserv/buffer"
	"github.com/codetesla51/webserv/logger"
)

// State is the parse progress of a Request
type State int

const (
	RequestLine State = iota
	Headers
	Body
	Finish
)

func (s State) String() string {
	switch s {
	case RequestLine:
		return "REQUEST_LINE"
	case Headers:
		return "HEADERS"
	case Body:
		return "BODY"
	case Finish:
		return "FINISH"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrEmpty means Parse was handed a buffer with nothing to read
	ErrEmpty = errors.New("request: empty buffer")
	// ErrBadRequestLine means the first line is not "METHOD PATH HTTP/VERSION".
	// The connection should be dropped.
	ErrBadRequestLine = errors.New("request: malformed request line")
)

var crlf = []byte("\r\n")

// bare page names that get ".html" appended
var defaultHTML = map[string]struct{}{
	"/index":    {},
	"/register": {},
	"/login":    {},
	"/welcome":  {},
	"/video":    {},
	"/picture":  {},
}

// POST routes served by the credential process, with their auth type
var cgiRoutes = map[string]string{
	"/api/register": "1",
	"/api/login":    "2",
}

// WelcomePath replaces the path of every form POST once its body is decoded
const WelcomePath = "/welcome.html"

const (
	formURLEncoded     = "application/x-www-form-urlencoded"
	formURLEncodedUTF8 = "application/x-www-form-urlencoded; charset=UTF-8"
)

// Request holds one parsed HTTP request. It is reused across keep-alive
// requests on the same connection through Init.
type Request struct {
	method  string
	path    string
	version string
	body    string
	state   State
	header  map[string]string
	post    map[string]string

	captured string
	cgi      CGIResult

	runner CGIRunner
	log    *logger.Logger
}

// New creates a Request that uses runner for credential routes
func New(runner CGIRunner, log *logger.Logger) *Request {
	if log == nil {
		log = logger.Discard()
	}
	r := &Request{runner: runner, log: log}
	r.Init()
	return r
}

// Init clears every field for the next request on the connection
func (r *Request) Init() {
	r.method, r.path, r.version, r.body = "", "", "", ""
	r.state = RequestLine
	r.header = make(map[string]string)
	r.post = make(map[string]string)
	r.captured = ""
	r.cgi = CGIResult{}
}

// Parse consumes buf line by line. A line without a CRLF before the end
// of the readable bytes is taken whole and ends the pass.
//
// The whole buffer is discarded when the pass ends, including bytes the
// state machine did not reach. Bodies are never sized by Content-Length,
// so a request split across reads, or two requests in one read, lose data.
func (r *Request) Parse(ctx context.Context, buf *buffer.Buffer) error {
	if buf.ReadableBytes() <= 0 {
		return ErrEmpty
	}
	r.captured = ""
	r.cgi = CGIResult{}

	for buf.ReadableBytes() > 0 && r.state != Finish {
		data := buf.Peek()
		end := bytes.Index(data, crlf)
		found := end >= 0
		if !found {
			end = len(data)
		}
		line := string(data[:end])

		switch r.state {
		case RequestLine:
			if err := r.parseRequestLine(line); err != nil {
				r.log.Errorf("RequestLine Error: %q", line)
				return err
			}
			r.parsePath()
		case Headers:
			r.parseHeader(line)
			if buf.ReadableBytes() <= 2 {
				r.state = Finish
			}
		case Body:
			r.parseBody(ctx, line)
		}

		if !found {
			break
		}
		buf.RetrieveUntil(end + 2)
	}

	buf.RetrieveAll()
	r.log.Debugf("[%s], [%s], [%s]", r.method, r.path, r.version)
	return nil
}

// parseRequestLine accepts exactly "METHOD SP PATH SP HTTP/VERSION".
// Method and path may be empty; neither may contain a space.
func (r *Request) parseRequestLine(line string) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return ErrBadRequestLine
	}
	method, path, proto := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(proto, "HTTP/") {
		return ErrBadRequestLine
	}

	r.method = method
	r.path = path
	r.version = strings.TrimPrefix(proto, "HTTP/")
	r.state = Headers
	return nil
}

func (r *Request) parsePath() {
	if r.path == "/" {
		r.path = "/index.html"
		return
	}
	if _, ok := defaultHTML[r.path]; ok {
		r.path += ".html"
	}
}

// parseHeader stores "key: value". Any line without a colon, not only
// the blank separator line, ends the header block.
func (r *Request) parseHeader(line string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		r.state = Body
		return
	}
	value := line[idx+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	r.header[line[:idx]] = value
}

// parseBody takes one line as the entire body
func (r *Request) parseBody(ctx context.Context, line string) {
	r.body = line
	r.parsePost(ctx)
	r.state = Finish
	r.log.Debugf("Body:%s, len:%d", line, len(line))
}

func (r *Request) parsePost(ctx context.Context) {
	if r.method != "POST" {
		return
	}
	ct := r.header["Content-Type"]
	if ct != formURLEncoded && ct != formURLEncodedUTF8 {
		return
	}

	r.parseFromURLEncoded()
	if authType, ok := cgiRoutes[r.path]; ok {
		r.runCGI(ctx, authType)
	}
	// the credential outcome only lives in the captured payload
	r.path = WelcomePath
}

func (r *Request) runCGI(ctx context.Context, authType string) {
	if r.runner == nil {
		r.log.Errorf("no credential runner configured for %s", r.path)
		return
	}

	res := r.runner.Run(ctx, r.post["username"], r.post["password"], authType)
	r.cgi = res
	r.captured = res.Output

	switch {
	case res.Err != nil:
		r.log.Errorf("CGI programe execute error:%v", res.Err)
	case res.ExitCode != 0:
		r.log.Errorf("CGI programe execute error:%d", res.ExitCode)
	default:
		r.log.Debugf("CGI programe execute success:%s", res.Output)
	}
}

// IsKeepAlive reports "Connection: keep-alive" on an HTTP/1.1 request
func (r *Request) IsKeepAlive() bool {
	if v, ok := r.header["Connection"]; ok {
		return v == "keep-alive" && r.version == "1.1"
	}
	return false
}

func (r *Request) Method() string  { return r.method }
func (r *Request) Path() string    { return r.path }
func (r *Request) Version() string { return r.version }
func (r *Request) Body() string    { return r.body }
func (r *Request) State() State    { return r.state }

// SetPath lets the response layer redirect to an error page
func (r *Request) SetPath(path string) {
	r.path = path
}

// Header returns a header value exactly as received
func (r *Request) Header(key string) string {
	return r.header[key]
}

// Headers returns a copy of the header map
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.header))
	for k, v := range r.header {
		out[k] = v
	}
	return out
}

// Post returns a decoded form field, or "" if absent
func (r *Request) Post(key string) string {
	return r.post[key]
}

// PostFields returns a copy of the decoded form fields
func (r *Request) PostFields() map[string]string {
	out := make(map[string]string, len(r.post))
	for k, v := range r.post {
		out[k] = v
	}
	return out
}

// CapturedResponse is the credential process output for this request
func (r *Request) CapturedResponse() string {
	return r.captured
}

// CGIResult is the full result of the credential process call, if any
func (r *Request) CGIResult() CGIResult {
	return r.cgi
}
