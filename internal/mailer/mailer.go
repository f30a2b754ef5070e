// Package mailer delivers compiled issues, preferring the email
// gateway and falling back to direct SES delivery when the gateway is
// not configured.
package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/pivotmedia/newsroom/internal/mautic"
)

// Request is one compiled issue ready to deliver.
type Request struct {
	Name    string
	Subject string
	HTML    string
}

// Outcome summarizes a delivery for the archive row.
type Outcome struct {
	GatewayEmailID int
	SentCount      int
	Stats          *mautic.Stats
	Transport      string
}

// Sender delivers one compiled issue.
type Sender interface {
	Send(ctx context.Context, req Request) (*Outcome, error)
}

// GatewayConfig carries segment, transport, and from-identity settings
// for gateway sends.
type GatewayConfig struct {
	SegmentID   int
	TransportID int
	FromAddress string
	FromName    string
	ReplyTo     string
}

// GatewaySender delivers through the Mautic gateway: create email,
// bind transport, send to segment, snapshot stats.
type GatewaySender struct {
	client *mautic.Client
	cfg    GatewayConfig
}

// NewGatewaySender creates the gateway-backed sender.
func NewGatewaySender(client *mautic.Client, cfg GatewayConfig) *GatewaySender {
	return &GatewaySender{client: client, cfg: cfg}
}

// Send implements Sender.
func (s *GatewaySender) Send(ctx context.Context, req Request) (*Outcome, error) {
	email, err := s.client.CreateEmail(ctx, mautic.EmailDefinition{
		Name:           req.Name,
		Subject:        req.Subject,
		CustomHTML:     req.HTML,
		Description:    "Automated newsletter issue",
		FromAddress:    s.cfg.FromAddress,
		FromName:       s.cfg.FromName,
		ReplyToAddress: s.cfg.ReplyTo,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway email: %w", err)
	}
	log.Printf("[Mailer] created gateway email %d for %q", email.ID, req.Name)

	if s.cfg.TransportID != 0 {
		if err := s.client.AttachTransport(ctx, email.ID, s.cfg.TransportID); err != nil {
			return nil, fmt.Errorf("attaching transport: %w", err)
		}
	}

	result, err := s.client.SendToSegment(ctx, email.ID, s.cfg.SegmentID)
	if err != nil {
		return nil, fmt.Errorf("sending to segment %d: %w", s.cfg.SegmentID, err)
	}

	outcome := &Outcome{
		GatewayEmailID: email.ID,
		SentCount:      result.SentCount,
		Transport:      "gateway",
	}

	// Stats are a best-effort snapshot; a failure here must not fail
	// the send.
	if stats, serr := s.client.GetStats(ctx, email.ID); serr == nil {
		outcome.Stats = stats
	} else {
		log.Printf("[Mailer] stats snapshot for email %d failed: %v", email.ID, serr)
	}

	log.Printf("[Mailer] sent %q to segment %d (%d recipients)", req.Name, s.cfg.SegmentID, result.SentCount)
	return outcome, nil
}
