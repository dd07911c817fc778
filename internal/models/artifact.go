package models

import "github.com/google/uuid"

// ArtifactKind distinguishes the two recordings produced per answered question.
type ArtifactKind string

const (
	// ArtifactVideo is the combined camera+microphone recording.
	ArtifactVideo ArtifactKind = "video"
	// ArtifactAudio is the audio-only recording used for transcription and
	// stress scoring.
	ArtifactAudio ArtifactKind = "audio"
)

// Artifact is one finalized recording for one question. Data may be empty when
// the candidate never granted device access; an empty artifact is still a
// valid upload input.
type Artifact struct {
	SessionID      uuid.UUID
	QuestionNumber int
	Kind           ArtifactKind
	ContentType    string
	Data           []byte
}
