package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
	"github.com/ramirezdev26/swifty-ai-digester/internal/mq"
)

// EventType — закрытый набор типов исходящих событий.
type EventType string

const (
	EventTypeImageProcessed EventType = "ImageProcessed"
	EventTypeImageFailed    EventType = "image.failed"
)

// Envelope — общий конверт обоих типов исходящих событий.
type Envelope struct {
	EventType EventType `json:"eventType"`
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ProcessedPayload — payload события ImageProcessed.
type ProcessedPayload struct {
	ImageID        string `json:"imageId"`
	UserID         string `json:"userId"`
	ProcessedURL   string `json:"processedUrl"`
	PublicID       string `json:"publicId"`
	Style          string `json:"style"`
	ProcessingTime int64  `json:"processingTime"`
}

// FailedPayload — payload события image.failed.
type FailedPayload struct {
	ImageID    *string          `json:"imageId"`
	UserID     *string          `json:"userId"`
	Error      string           `json:"error"`
	ErrorCode  domain.ErrorCode `json:"errorCode"`
	RetryCount int              `json:"retryCount"`
}

// rawPublisher is the subset of mq.Publisher outcome needs, so tests
// don't require a live broker connection.
type rawPublisher interface {
	PublishRaw(ctx context.Context, exchange mq.Exchange, routingKey mq.RoutingKey, body []byte, headers map[string]any) error
}

// Publisher emits ImageProcessed/image.failed events (C6).
type Publisher struct {
	raw rawPublisher
}

// New builds a Publisher over an mq.Publisher (or any rawPublisher fake).
func New(raw rawPublisher) *Publisher {
	return &Publisher{raw: raw}
}

// PublishSuccess emits ImageProcessed for a completed pipeline run.
// processingTime is defined as the sum of the recorded phase timings
// (spec §9, Open Question O1).
func (p *Publisher) PublishSuccess(ctx context.Context, userID string, success domain.PipelineSuccess) error {
	payload := ProcessedPayload{
		ImageID:        success.ImageID,
		UserID:         userID,
		ProcessedURL:   success.ProcessedURL,
		PublicID:       success.PublicID,
		Style:          success.Style,
		ProcessingTime: success.Timings.Total(),
	}

	return p.publish(ctx, EventTypeImageProcessed, payload)
}

// PublishFailure emits image.failed for a terminal outcome. imageID and
// userID may be empty (e.g. a malformed message with no recoverable
// payload) — those fields are then serialized as JSON null (spec §9,
// Open Question O2).
func (p *Publisher) PublishFailure(ctx context.Context, failure domain.PipelineFailure) error {
	payload := FailedPayload{
		ImageID:    optionalString(failure.ImageID),
		UserID:     optionalString(failure.UserID),
		Error:      failure.ErrorMessage,
		ErrorCode:  failure.ErrorCode,
		RetryCount: failure.RetryCount,
	}

	return p.publish(ctx, EventTypeImageFailed, payload)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, payload any) error {
	envelope := Envelope{
		EventType: eventType,
		EventID:   newEventID(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outcome envelope: %w", err)
	}

	return p.raw.PublishRaw(ctx, mq.ExchangeResults, "", body, nil)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newEventID generates an id shaped "evt_<unix-ms>_<7-char-random>"
// (spec §4.6), used both as the event's correlation id and the
// journal's idempotency key.
func newEventID() string {
	return fmt.Sprintf("evt_%d_%s", time.Now().UnixMilli(), randomSuffix(7))
}

// randomSuffix takes n characters off a fresh uuid (dashes stripped) so
// callers get a short, still-collision-resistant tail without pulling
// in a second randomness source.
func randomSuffix(n int) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
