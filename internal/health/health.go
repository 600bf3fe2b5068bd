// Package health implements bounded multi-endpoint HTTP probing over a
// single pooled client, and tail-chunk log-file reading.
package health

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/models"
)

// tlsInsecureConfig is used only when the operator explicitly sets
// HEALTH_CHECK_INSECURE; probes are against operator-owned domains.
var tlsInsecureConfig = tls.Config{InsecureSkipVerify: true} //nolint:gosec

const op = "health"

// candidatePaths is the fixed, ordered probe list.
var candidatePaths = []string{"/health", "/mcp", "/"}

const maxRedirectHops = 5
const maxResponseBodyChars = 1000

// Monitor owns the shared pooled HTTP client used for every probe, and the
// log-directory + per-kind relative path mapping used for logs().
type Monitor struct {
	clientOnce sync.Once
	client     *http.Client
	insecure   bool

	logDir    string
	logPaths  map[models.LogKind]string
}

// New constructs a Monitor rooted at logDir. logPathOverrides lets the
// operator override the default per-kind relative path mapping, since the
// on-disk filename layout varies across SWAG deployments.
func New(logDir string, insecure bool, logPathOverrides map[models.LogKind]string) *Monitor {
	m := &Monitor{logDir: logDir, insecure: insecure}
	m.logPaths = map[models.LogKind]string{
		models.LogNginxAccess: "nginx/access.log",
		models.LogNginxError:  "nginx/error.log",
		models.LogFail2ban:    "fail2ban/fail2ban.log",
		models.LogLetsencrypt: "letsencrypt/letsencrypt.log",
		models.LogRenewal:     "letsencrypt/renewal.log",
	}
	for k, v := range logPathOverrides {
		m.logPaths[k] = v
	}
	return m
}

func (m *Monitor) httpClient() *http.Client {
	m.clientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     300 * time.Second,
		}
		if m.insecure {
			transport.TLSClientConfig = &tlsInsecureConfig
		}
		m.client = &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirectHops {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	})
	return m.client
}

// Close releases the pooled client's idle connections. Safe to call even
// if no probe has ever run.
func (m *Monitor) Close() {
	if m.client != nil {
		m.client.CloseIdleConnections()
	}
}

// Check performs a bounded, ordered multi-endpoint probe against req.Domain,
// classifying each candidate per the rules in classify. The first candidate
// meeting the success rule wins; later candidates are never attempted.
func (m *Monitor) Check(ctx context.Context, req models.HealthRequest) (models.HealthResult, error) {
	perAttempt := time.Duration((req.TimeoutSeconds+len(candidatePaths)-1)/len(candidatePaths)) * time.Second
	client := m.httpClient()

	first := fmt.Sprintf("https://%s%s", req.Domain, candidatePaths[0])

	for _, p := range candidatePaths {
		url := fmt.Sprintf("https://%s%s", req.Domain, p)

		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		start := time.Now()
		status, body, redirectChain, err := m.attempt(attemptCtx, client, url, req.FollowRedirects)
		elapsed := int(time.Since(start).Milliseconds())
		cancel()

		if err != nil {
			continue // transport error, TLS failure, or timeout: try next candidate
		}

		if classify(status, p) {
			sc := status
			em := elapsed
			return models.HealthResult{
				Domain:         req.Domain,
				URL:            url,
				StatusCode:     &sc,
				ResponseTimeMS: &em,
				ResponseBody:   body,
				Success:        true,
				RedirectChain:  redirectChain,
			}, nil
		}
	}

	return models.HealthResult{
		Domain:  req.Domain,
		URL:     first,
		Success: false,
		Error:   fmt.Sprintf("all health check URLs failed for domain %s", req.Domain),
	}, nil
}

// attempt issues one GET, optionally following redirects up to
// maxRedirectHops, and returns the final status code and a truncated body.
func (m *Monitor) attempt(ctx context.Context, client *http.Client, url string, followRedirects bool) (status int, body string, chain []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", nil, err
	}

	c := *client
	if !followRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL.String() != url {
		chain = append(chain, resp.Request.URL.String())
	}

	limited := io.LimitReader(resp.Body, maxResponseBodyChars+1)
	raw, _ := io.ReadAll(limited)
	text := string(raw)
	if len(text) > maxResponseBodyChars {
		text = text[:maxResponseBodyChars] + "... (truncated)"
	}
	return resp.StatusCode, text, chain, nil
}

// classify reports whether one candidate's response counts as a success:
// any 2xx always does, and 401/403/406 count only on the /mcp candidate,
// since an MCP endpoint demanding auth is still reachable.
func classify(status int, path string) bool {
	switch {
	case status >= 200 && status < 300:
		return true
	case status == 401 || status == 403 || status == 406:
		return path == "/mcp"
	default:
		return false
	}
}

// GetLogs returns the last n lines of the file mapped to kind, reading from
// the tail in fixed-size chunks and splitting on the last newline boundary,
// without loading the whole file into memory.
func (m *Monitor) GetLogs(ctx context.Context, req models.LogsRequest) (string, error) {
	rel, ok := m.logPaths[req.Kind]
	if !ok {
		return "", errs.FieldErr(op+".GetLogs", "kind", "unrecognized log kind")
	}
	path := m.logDir + string(os.PathSeparator) + rel

	lines, err := tailLines(path, req.Lines)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("log file not found: %s\nthe log file may not exist yet, or the service may not be running.", path), nil
		}
		return "", errs.Target(errs.IOFailure, op+".GetLogs", path, err)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("no log entries found in %s log.", req.Kind), nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

const tailChunkSize = 64 * 1024

// tailLines reads the last n lines of the file at path without loading the
// whole file into memory: it reads fixed-size chunks backward from the end,
// accumulating a growing prefix buffer until it holds more than n newlines
// or reaches the start of the file, then splits once on the last newline
// boundary.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	var buf []byte
	pos := size

	for {
		chunkSize := int64(tailChunkSize)
		if chunkSize > pos {
			chunkSize = pos
		}
		pos -= chunkSize

		chunk := make([]byte, chunkSize)
		if _, err := f.ReadAt(chunk, pos); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)

		if bytes.Count(buf, []byte{'\n'}) > n || pos == 0 {
			break
		}
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
