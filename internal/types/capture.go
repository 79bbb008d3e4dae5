// Package types holds the data model shared across every stage of the
// ingestion and retrieval engine: Capture, VectorEntry, Session, and the
// opaque row types owned by downstream collaborators.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the capture source that produced a Capture.
type Kind string

const (
	KindScreenOCR       Kind = "screen_ocr"
	KindAudioTranscript Kind = "audio_transcript"
	KindDictation       Kind = "dictation"
	KindIngestedText    Kind = "ingested_text"
)

// Tier is the lifecycle bucket derived from a Capture's age.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// PIIFlag is a single bit in a Capture's pii_flags bitset.
type PIIFlag uint32

const (
	PIIFlagNone       PIIFlag = 0
	PIIFlagCreditCard PIIFlag = 1 << iota
	PIIFlagSSN
	PIIFlagEmail
	PIIFlagPhone
)

// PIIKind names a single recognized PII category, used both as the
// placeholder tag ("[REDACTED:<kind>]") and as the key into a PIIFlag.
type PIIKind string

const (
	PIIKindCreditCard PIIKind = "credit_card"
	PIIKindSSN        PIIKind = "ssn"
	PIIKindEmail      PIIKind = "email"
	PIIKindPhone      PIIKind = "phone"
)

// Flag returns the bitset flag corresponding to a PIIKind.
func (k PIIKind) Flag() PIIFlag {
	switch k {
	case PIIKindCreditCard:
		return PIIFlagCreditCard
	case PIIKindSSN:
		return PIIFlagSSN
	case PIIKindEmail:
		return PIIFlagEmail
	case PIIKindPhone:
		return PIIFlagPhone
	default:
		return PIIFlagNone
	}
}

// ID is a 128-bit opaque identifier that is monotonic by creation time
// within a single producer. It is implemented as a time-ordered UUIDv7,
// which is exactly what that RFC draft guarantees.
type ID = uuid.UUID

// NewID returns a fresh, time-ordered capture/session identifier.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the global entropy source errors; fall back
		// to a random v4 rather than panic the ingestion path.
		return uuid.New()
	}
	return id
}

// Capture is the unit of ingestion: one admitted piece of screen/audio/
// dictation text with its metadata.
type Capture struct {
	ID             ID
	Kind           Kind
	CapturedAt     time.Time
	SourceApp      string
	Text           string
	TextHash       string
	EmbeddingRef   *int64 // vid in the vector index, nil if not embedded
	Tier           Tier
	PIIFlags       PIIFlag
	LengthChars    int
	OriginMetadata map[string]any
}

// HasEmbedding reports whether the capture has a confirmed vector entry.
func (c *Capture) HasEmbedding() bool {
	return c.EmbeddingRef != nil
}

// VectorEntry records the back-reference from a vector index id (vid) to
// its owning Capture, plus the embedding generation it was produced under.
type VectorEntry struct {
	VID       int64
	CaptureID ID
	Dim       int
	ModelID   string
}

// SessionKind distinguishes dictation sessions from chat sessions, kept for
// completeness of the store's row-lifecycle contract; the core does not
// interpret session content.
type SessionKind string

const (
	SessionKindDictation SessionKind = "dictation"
	SessionKindChat      SessionKind = "chat"
)

// Session groups related captures (dictation or chat) under a single
// lifecycle. The core only guarantees storage, not interpretation.
type Session struct {
	SessionID ID
	StartedAt time.Time
	EndedAt   *time.Time
	Kind      SessionKind
}
