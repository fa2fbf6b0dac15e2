package journal

import (
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

// Outcome — закрытый набор исходов, записываемых в журнал.
type Outcome string

const (
	OutcomeProcessed     Outcome = "PROCESSED"
	OutcomeDeadLettered  Outcome = "DEAD_LETTERED"
	OutcomeRepublishedOk Outcome = "REPUBLISHED"
)

// Entry — одна запись журнала: терминальный исход одного сообщения, с
// достаточным контекстом для ручного republish через cmd/imageworkerctl.
type Entry struct {
	EventID      string
	ImageID      string
	UserID       string
	Partition    int
	Outcome      Outcome
	ErrorCode    domain.ErrorCode
	Error        string
	RetryCount   int
	OriginalBody []byte
	RecordedAt   time.Time
}
