package uptime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	maxBodySize = 2 << 20
	userAgent   = "modcogs-uptime/1.0"
)

// Result is the outcome of one ping.
type Result struct {
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// OK reports whether the ping counts as a success.
func (r Result) OK() bool { return r.Error == "" && r.StatusCode > 0 && r.StatusCode < 400 }

// probe sends one request according to cfg. Status codes below 400 succeed;
// with a keyword set, the page's readable text must also contain it.
func probe(ctx context.Context, client *http.Client, cfg Config) Result {
	start := time.Now()
	res := Result{}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	method := strings.ToUpper(cfg.Method)
	var body io.Reader
	if method == http.MethodPost && cfg.Body != nil {
		b, err := json.Marshal(cfg.Body)
		if err != nil {
			res.Error = fmt.Sprintf("encode body: %v", err)
			return res
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "Request timeout"
		} else {
			res.Error = err.Error()
		}
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}

	if cfg.ExpectKeyword != "" && method != http.MethodHead {
		found, err := containsKeyword(resp, cfg.ExpectKeyword)
		if err != nil {
			res.Error = err.Error()
		} else if !found {
			res.Error = fmt.Sprintf("Keyword %q not found", cfg.ExpectKeyword)
		}
	}
	return res
}

// containsKeyword searches the response for keyword, case-insensitively.
// HTML pages are reduced to their readable text first so markup and scripts
// do not match; pages readability cannot parse are searched raw.
func containsKeyword(resp *http.Response, keyword string) (bool, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	text := string(raw)

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if readable, ok := readableText(raw, resp.Request.URL); ok {
			text = readable
		}
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword)), nil
}

func readableText(page []byte, pageURL *url.URL) (string, bool) {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return "", false
	}
	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return "", false
	}
	text := strings.TrimSpace(buf.String())
	return text, text != ""
}
