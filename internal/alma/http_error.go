package alma

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/beevik/etree"
)

// HTTPError is a sanitized summary of a non-2xx Alma API response.
//
// Important: do not include raw response bodies here (they carry patron
// PII and can echo credentials).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string
	ErrorMsg   string

	// Snippet is a redacted, truncated hint for responses that are not the
	// standard web_service_result envelope.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "alma http error"
	}
	parts := []string{
		fmt.Sprintf("alma api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "errorCode="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.ErrorMsg) != "" {
		parts = append(parts, "errorMessage="+strings.TrimSpace(e.ErrorMsg))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: parse the web_service_result error envelope.
	if len(body) > 0 {
		doc := etree.NewDocument()
		if doc.ReadFromBytes(body) == nil {
			if el := doc.FindElement("//errorCode"); el != nil {
				h.ErrorCode = strings.TrimSpace(el.Text())
			}
			if el := doc.FindElement("//errorMessage"); el != nil {
				h.ErrorMsg = strings.TrimSpace(el.Text())
			}
			if h.ErrorCode != "" || h.ErrorMsg != "" {
				return h
			}
		}
	}

	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}

// TransientError marks a remote failure as retryable (rate limits, server
// errors, timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
