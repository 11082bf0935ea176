package domain

import "time"

type RoomID string

type RoomKind string

const (
	KindCypher      RoomKind = "cypher"
	KindRemix       RoomKind = "remix"
	KindBeatSession RoomKind = "beat-session"
	KindJam         RoomKind = "jam"
	KindWorkshop    RoomKind = "workshop"
	KindBattle      RoomKind = "battle"
)

const MaxRoomIDLen = 64

// Kinds lists every room kind in a stable order.
var Kinds = []RoomKind{KindCypher, KindRemix, KindBeatSession, KindJam, KindWorkshop, KindBattle}

func ParseRoomKind(s string) (RoomKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownRoomKind
}

func ValidateRoomID(id RoomID) error {
	if id == "" || len(id) > MaxRoomIDLen {
		return ErrInvalidRoomID
	}
	return nil
}

// Participant is the room-scoped view of a connection.
type Participant struct {
	User          User
	Muted         bool
	VideoEnabled  bool
	ScreenSharing bool
	// AudioLevel is pushed by the client and never verified.
	AudioLevel int
	Speaking   bool
	JoinedAt   time.Time
}

// SpeakingThreshold is the advisory audio level at which a participant counts as speaking.
const SpeakingThreshold = 10

func ClampAudioLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > 100:
		return 100
	default:
		return level
	}
}
