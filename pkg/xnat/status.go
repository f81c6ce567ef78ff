package xnat

import (
	"fmt"
	"io"
	"net/http"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

type StatusCodeRange int

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", sc)
	}
}

func StatusCodeRangeOf(resp *http.Response) StatusCodeRange {
	switch sc := resp.StatusCode; {
	case sc < 100:
		return StatusUnknown
	case sc < 200:
		return Status1xx
	case sc < 300:
		return Status2xx
	case sc < 400:
		return Status3xx
	case sc < 500:
		return Status4xx
	case sc < 600:
		return Status5xx
	}
	return StatusUnknown
}

// MessageFor is the headline of an error for a status code range.
type MessageFor map[StatusCodeRange]string

// checkResponse turns a non-2xx response into an ErrExternalCall error,
// carrying the status and the body. The body is drained in any case.
func checkResponse(resp *http.Response, what string, messageFor MessageFor) error {
	defer resp.Body.Close()
	scr := StatusCodeRangeOf(resp)
	if scr == Status2xx {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	message, ok := messageFor[scr]
	if !ok {
		message = scr.String()
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return xe.ExternalCall("%s: %s (status %d; cannot read body: %s)", what, message, resp.StatusCode, err)
	}
	return xe.ExternalCall("%s: %s (status %d): %s", what, message, resp.StatusCode, string(body))
}
