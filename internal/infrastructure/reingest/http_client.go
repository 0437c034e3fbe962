package reingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 4 << 10

type request struct {
	DocumentID string `json:"documentId"`
}

// HTTPClient posts reingestion requests to the ingestion service.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

var _ ports.Reingester = (*HTTPClient)(nil)

func NewHTTPClient(endpoint string, timeout time.Duration) (*HTTPClient, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("reingest url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) ReingestDocument(ctx context.Context, documentID string) (ports.ReingestResult, error) {
	payload, err := json.Marshal(request{DocumentID: documentID})
	if err != nil {
		return ports.ReingestResult{}, errs.Wrap(err, "encode reingest request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ports.ReingestResult{}, errs.Wrap(err, "build reingest request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.ReingestResult{}, errs.Wrapf(err, "reingest document %s", documentID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ports.ReingestResult{}, fmt.Errorf("reingest api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ports.ReingestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ports.ReingestResult{}, errs.Wrap(err, "decode reingest response")
	}
	return result, nil
}
