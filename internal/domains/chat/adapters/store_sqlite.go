package adapters

import (
	"sync"
	"time"

	"gorm.io/gorm"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// TranscriptRecord is the SQLite row for one transcript.
type TranscriptRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RequestID   string `gorm:"uniqueIndex;size:32;not null"`
	PersonaSlug string `gorm:"index;not null"`
	Persona     string `gorm:"not null"`
	Stakeholder string
	CreatedAt   time.Time `gorm:"index"`

	Messages     []contractchat.MessageV1 `gorm:"serializer:json"`
	Content      string
	FinishReason string
	Parameters   contractchat.GenerationParametersV1 `gorm:"serializer:json"`
}

func (TranscriptRecord) TableName() string { return "transcripts" }

func recordFromTranscript(t contractchat.TranscriptV1) TranscriptRecord {
	return TranscriptRecord{
		RequestID:    t.RequestID,
		PersonaSlug:  domain.PersonaSlug(t.PersonaOrDefault()),
		Persona:      t.Persona,
		Stakeholder:  t.Stakeholder,
		CreatedAt:    t.CreatedAt.UTC(),
		Messages:     t.Messages,
		Content:      t.Response.Content,
		FinishReason: string(t.Response.FinishReason),
		Parameters:   t.Parameters,
	}
}

func (r TranscriptRecord) transcript() contractchat.TranscriptV1 {
	return contractchat.TranscriptV1{
		RequestID:   r.RequestID,
		CreatedAt:   r.CreatedAt.UTC(),
		Sequence:    uint64(r.ID),
		Persona:     r.Persona,
		Stakeholder: r.Stakeholder,
		Messages:    r.Messages,
		Response: contractchat.TranscriptResponseV1{
			Content:      r.Content,
			FinishReason: contractchat.FinishReasonV1(r.FinishReason),
		},
		Parameters: r.Parameters,
	}
}

// SQLiteTranscriptStore implements the TranscriptStore port on SQLite via gorm.
// The *gorm.DB must have TranscriptRecord migrated.
type SQLiteTranscriptStore struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewSQLiteTranscriptStore(db *gorm.DB) *SQLiteTranscriptStore {
	return &SQLiteTranscriptStore{db: db}
}

func (s *SQLiteTranscriptStore) Append(req ports.AppendTranscriptRequest) error {
	t := req.Transcript
	if !domain.IsValidRequestID(t.RequestID) {
		return apperrors.NewPersistence("transcript store: invalid request_id: "+t.RequestID, nil)
	}
	rec := recordFromTranscript(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Create(&rec).Error; err != nil {
		return apperrors.NewPersistence("transcript store: insert failed", err)
	}
	return nil
}

func (s *SQLiteTranscriptStore) ListByPersona(req ports.ListTranscriptsRequest) (ports.ListTranscriptsResult, error) {
	matcher := domain.NewPersonaMatcher(req.Personas)

	q := s.db.Model(&TranscriptRecord{}).Order("created_at ASC").Order("id ASC")
	if !matcher.Empty() {
		q = q.Where("persona_slug IN ?", matcher.Slugs())
	}

	var rows []TranscriptRecord
	if err := q.Find(&rows).Error; err != nil {
		return ports.ListTranscriptsResult{}, apperrors.NewPersistence("transcript store: query failed", err)
	}

	all := make([]contractchat.TranscriptV1, 0, len(rows))
	for _, r := range rows {
		all = append(all, r.transcript())
	}
	return ports.ListTranscriptsResult{ByPersona: groupByPersona(all, req.CapPerPersona)}, nil
}
