package reingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
)

const defaultSubject = "ingest.reingest"

// reply is what the ingestion worker answers on the request subject.
type reply struct {
	ports.ReingestResult
	Error string `json:"error,omitempty"`
}

// NATSClient sends reingestion requests using NATS request-reply.
type NATSClient struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

var _ ports.Reingester = (*NATSClient)(nil)

func NewNATSClient(conn *nats.Conn, subject string, timeout time.Duration) (*NATSClient, error) {
	if conn == nil {
		return nil, errors.New("nats connection is required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = defaultSubject
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NATSClient{conn: conn, subject: subject, timeout: timeout}, nil
}

func (c *NATSClient) ReingestDocument(ctx context.Context, documentID string) (ports.ReingestResult, error) {
	payload, err := json.Marshal(request{DocumentID: documentID})
	if err != nil {
		return ports.ReingestResult{}, errs.Wrap(err, "encode reingest request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(reqCtx, c.subject, payload)
	if err != nil {
		return ports.ReingestResult{}, errs.Wrapf(err, "reingest document %s over %s", documentID, c.subject)
	}

	var out reply
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		return ports.ReingestResult{}, errs.Wrap(err, "decode reingest reply")
	}
	if out.Error != "" {
		return ports.ReingestResult{}, errors.New("reingest worker: " + out.Error)
	}
	return out.ReingestResult, nil
}
