package domain

import "time"

// ImageJob — входящее сообщение очереди: запрос на трансформацию изображения.
//
// Создаётся продюсером вне этого воркера и приходит через
// pixpro.processing/image.uploaded.partition.<p>.
type ImageJob struct {
	// ImageID — уникальный идентификатор изображения в рамках логической работы.
	ImageID string `json:"imageId"`

	// UserID — передаётся насквозь, используется только в исходящих событиях.
	UserID string `json:"userId"`

	// OriginalImageURL — URL, по которому доступны исходные байты изображения.
	OriginalImageURL string `json:"originalImageUrl"`

	// Style — тег трансформации: метка метрики и часть prompt для AI-бэкенда.
	Style string `json:"style"`

	// EventID — id, присвоенный продюсером; используется как correlation id.
	EventID string `json:"eventId"`
}

// IngressMessage — конверт сообщения на входной очереди (см. spec §6).
type IngressMessage struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Payload   ImageJob  `json:"payload"`
}
