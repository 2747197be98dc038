package server

import (
	"sort"
	"strconv"

	"github.com/codetesla51/webserv/buffer"
	"golang.org/x/net/http/httpguts"
)

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
}

// Response describes what goes back for one request
type Response struct {
	Status      int
	ContentType string
	KeepAlive   bool
	Body        []byte
	Headers     map[string]string
}

// WriteTo appends the serialized response to out
func (r *Response) WriteTo(out *buffer.Buffer) {
	text, ok := statusText[r.Status]
	if !ok {
		r.Status = 400
		text = statusText[400]
	}

	out.AppendString("HTTP/1.1 ")
	out.AppendString(strconv.Itoa(r.Status))
	out.AppendString(" ")
	out.AppendString(text)
	out.AppendString("\r\n")

	if r.KeepAlive {
		out.AppendString("Connection: keep-alive\r\n")
		out.AppendString("Keep-Alive: max=6, timeout=120\r\n")
	} else {
		out.AppendString("Connection: close\r\n")
	}
	out.AppendString("Content-Type: ")
	out.AppendString(r.ContentType)
	out.AppendString("\r\n")

	if len(r.Headers) > 0 {
		keys := make([]string, 0, len(r.Headers))
		for k := range r.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := r.Headers[k]
			if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
				continue
			}
			out.AppendString(k)
			out.AppendString(": ")
			out.AppendString(v)
			out.AppendString("\r\n")
		}
	}

	out.AppendString("Content-Length: ")
	out.AppendString(strconv.Itoa(len(r.Body)))
	out.AppendString("\r\n\r\n")
	out.Append(r.Body)
}

// CreateResponseBytes builds a complete response as bytes
func CreateResponseBytes(status int, contentType string, keepAlive bool, body []byte) []byte {
	out := getBuffer(&outputBufferPool)
	defer putBuffer(&outputBufferPool, out)

	resp := &Response{Status: status, ContentType: contentType, KeepAlive: keepAlive, Body: body}
	resp.WriteTo(out)

	result := make([]byte, out.ReadableBytes())
	copy(result, out.Peek())
	return result
}

// errorContent is the fallback body when no error page exists on disk
func errorContent(status int, message string) []byte {
	text, ok := statusText[status]
	if !ok {
		text = "Bad Request"
	}
	body := "<html><title>Error</title>" +
		"<body bgcolor=\"ffffff\">" +
		strconv.Itoa(status) + " : " + text + "\n" +
		"<p>" + message + "</p>" +
		"<hr><em>raw-http webserv</em></body></html>"
	return []byte(body)
}
