// Package accesslog parses nginx access-log lines into structured entries
// for the demo HTTP layer's richer log view. The plain tail-text logs()
// operation (internal/health) remains the primary way to read a raw log;
// this package is a supplementary convenience parsing access logs into
// structured fields, reading from the shared log directory rather than a
// per-site file tree.
package accesslog

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmagar/swag-mcp/internal/errs"
)

const op = "accesslog"

// Entry is one parsed line of a combined-format access log.
type Entry struct {
	Raw           string    `json:"raw"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	RemoteUser    string    `json:"remote_user,omitempty"`
	TimeLocal     time.Time `json:"time_local,omitempty"`
	Request       string    `json:"request,omitempty"`
	Status        int       `json:"status,omitempty"`
	BodyBytesSent int64     `json:"body_bytes_sent,omitempty"`
	Referer       string    `json:"referer,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	RequestTime   float64   `json:"request_time,omitempty"`
}

// Options narrows and bounds the entries returned by AccessEntries.
type Options struct {
	Limit int
	// MinStatus, when set, drops any entry whose Status is below it -
	// e.g. 400 to see only client/server errors.
	MinStatus int
	Search    string
}

// Reader parses access-log entries out of the shared log directory.
type Reader struct {
	LogDir string
}

// New constructs a Reader rooted at logDir.
func New(logDir string) *Reader {
	return &Reader{LogDir: logDir}
}

// accessLogPattern matches the combined log format:
// $remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent" "$request_time"
var accessLogPattern = regexp.MustCompile(`^(\S+) - (\S+) \[([^\]]+)\] "([^"]*)" (\d+) (\d+) "([^"]*)" "([^"]*)" "([^"]*)"$`)

const nginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

// tailBuffer keeps only the most recent limit entries pushed into it,
// without ever holding more than limit in memory at once - unlike
// collecting every matching entry and slicing off the head afterward, it
// stays flat against a log file with millions of lines when a caller only
// wants the tail.
type tailBuffer struct {
	buf   []Entry
	next  int
	count int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{buf: make([]Entry, limit)}
}

func (b *tailBuffer) push(e Entry) {
	b.buf[b.next] = e
	b.next = (b.next + 1) % len(b.buf)
	if b.count < len(b.buf) {
		b.count++
	}
}

// drain returns the buffered entries oldest-first.
func (b *tailBuffer) drain() []Entry {
	if b.count < len(b.buf) {
		return append([]Entry(nil), b.buf[:b.count]...)
	}
	out := make([]Entry, len(b.buf))
	n := copy(out, b.buf[b.next:])
	copy(out[n:], b.buf[:b.next])
	return out
}

// AccessEntries reads and parses the access log for one service. A search
// filter is applied before parsing, as cheap rejection of the bulk of
// uninteresting lines; MinStatus is applied after parsing, since it needs
// the status field out of the regex match. With a limit set, entries are
// kept in a fixed-size tail buffer as the file is scanned rather than
// accumulated in full and sliced afterward.
func (r *Reader) AccessEntries(service string, opts Options) ([]Entry, error) {
	path := filepath.Join(r.LogDir, "nginx", service+".access.log")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errs.Target(errs.IOFailure, op+".AccessEntries", path, err)
	}
	defer f.Close()

	var tail *tailBuffer
	var entries []Entry
	if opts.Limit > 0 {
		tail = newTailBuffer(opts.Limit)
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, len(buf))

	for scanner.Scan() {
		line := scanner.Text()
		if opts.Search != "" && !strings.Contains(line, opts.Search) {
			continue
		}
		m := accessLogPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, err := time.Parse(nginxTimeLayout, m[3])
		if err != nil {
			continue
		}
		status, _ := strconv.Atoi(m[5])
		if status < opts.MinStatus {
			continue
		}
		bytesSent, _ := strconv.ParseInt(m[6], 10, 64)
		reqTime, _ := strconv.ParseFloat(m[9], 64)

		entry := Entry{
			Raw:           line,
			RemoteAddr:    m[1],
			RemoteUser:    m[2],
			TimeLocal:     t,
			Request:       m[4],
			Status:        status,
			BodyBytesSent: bytesSent,
			Referer:       m[7],
			UserAgent:     m[8],
			RequestTime:   reqTime,
		}
		if tail != nil {
			tail.push(entry)
		} else {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Target(errs.IOFailure, op+".AccessEntries", path, err)
	}

	if tail != nil {
		return tail.drain(), nil
	}
	return entries, nil
}
