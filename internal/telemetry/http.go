package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrReplyMalformed is returned when the endpoint's reply parses but
// does not carry the expected termination flag. The loop treats it as
// a transient miss, not a fatal fault.
var ErrReplyMalformed = errors.New("telemetry: malformed reply")

// HTTPTransport posts records to the endpoint as
// <endpoint>?data=<record> and decodes the JSON reply.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates a transport for the endpoint base URL. The
// per-request deadline comes from the caller's context, so the client
// itself carries no timeout.
func NewHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

// Post submits one encoded record and returns the parsed reply.
func (t *HTTPTransport) Post(ctx context.Context, data string) (*Reply, error) {
	// The record goes out unescaped; deployed endpoints match on the
	// literal bracketed list.
	reportURL := t.endpoint + "?data=" + data

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting record: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", res.StatusCode)
	}

	// Decode only the field the loop depends on; the endpoint owns the
	// rest of the reply shape.
	var body struct {
		EndLoop *bool `json:"endLoop"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReplyMalformed, err)
	}
	if body.EndLoop == nil {
		return nil, fmt.Errorf("%w: missing endLoop field", ErrReplyMalformed)
	}

	return &Reply{EndLoop: *body.EndLoop}, nil
}
