package core

import (
	"encoding/json"

	"github.com/dkeye/Cypher/internal/domain"
)

const (
	EvtRoomState         = "room-state"
	EvtMemberJoined      = "member-joined"
	EvtMemberLeft        = "member-left"
	EvtMuteChanged       = "mute-changed"
	EvtMediaStateChanged = "media-state-changed"
	EvtSpeakingChanged   = "speaking-changed"
	EvtHandRaised        = "hand-raised"
	EvtHandLowered       = "hand-lowered"
	EvtRecordingStarted  = "recording-started"
	EvtRecordingStopped  = "recording-stopped"
	EvtOwnerChanged      = "owner-changed"
	EvtLeft              = "left"

	EvtBattleCreated     = "battle-created"
	EvtBattleStarted     = "battle-started"
	EvtBattleRoundVoting = "battle-round-voting"
	EvtBattleRoundResult = "battle-round-result"
	EvtBattleCompleted   = "battle-completed"
	EvtBattleTally       = "battle-tally"
	EvtVoteAccepted      = "vote-accepted"

	EvtSignal       = "signal"
	EvtLayerUpdated = "layer-updated"

	EvtError  = "error"
	EvtPong   = "pong"
	EvtWhoAmI = "whoami"
)

// Envelope carries the wire "type" and is embedded by every event.
type Envelope struct {
	Type string `json:"type"`
}

func (e Envelope) EventType() string { return e.Type }

func typed(t string) Envelope { return Envelope{Type: t} }

type RoomStateEvent struct {
	Envelope
	RoomSnapshot
}

func NewRoomState(s RoomSnapshot) RoomStateEvent {
	return RoomStateEvent{Envelope: typed(EvtRoomState), RoomSnapshot: s}
}

type MemberEvent struct {
	Envelope
	RoomID      domain.RoomID `json:"roomId"`
	Participant MemberDTO     `json:"participant"`
	Count       int           `json:"count"`
}

func NewMemberJoined(room domain.RoomID, p MemberDTO, count int) MemberEvent {
	return MemberEvent{Envelope: typed(EvtMemberJoined), RoomID: room, Participant: p, Count: count}
}

func NewMemberLeft(room domain.RoomID, p MemberDTO, count int) MemberEvent {
	return MemberEvent{Envelope: typed(EvtMemberLeft), RoomID: room, Participant: p, Count: count}
}

type MuteChangedEvent struct {
	Envelope
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Muted  bool          `json:"muted"`
}

func NewMuteChanged(room domain.RoomID, user domain.UserID, muted bool) MuteChangedEvent {
	return MuteChangedEvent{Envelope: typed(EvtMuteChanged), RoomID: room, UserID: user, Muted: muted}
}

type MediaStateEvent struct {
	Envelope
	RoomID        domain.RoomID `json:"roomId"`
	UserID        domain.UserID `json:"userId"`
	AudioEnabled  bool          `json:"audioEnabled"`
	VideoEnabled  bool          `json:"videoEnabled"`
	ScreenSharing bool          `json:"screenSharing"`
}

func NewMediaState(room domain.RoomID, user domain.UserID, audio, video, screen bool) MediaStateEvent {
	return MediaStateEvent{
		Envelope:      typed(EvtMediaStateChanged),
		RoomID:        room,
		UserID:        user,
		AudioEnabled:  audio,
		VideoEnabled:  video,
		ScreenSharing: screen,
	}
}

type SpeakingEvent struct {
	Envelope
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	Speaking bool          `json:"speaking"`
	Level    int           `json:"level"`
}

func NewSpeakingChanged(room domain.RoomID, user domain.UserID, speaking bool, level int) SpeakingEvent {
	return SpeakingEvent{Envelope: typed(EvtSpeakingChanged), RoomID: room, UserID: user, Speaking: speaking, Level: level}
}

type HandEvent struct {
	Envelope
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	Position int           `json:"position,omitempty"`
}

func NewHandRaised(room domain.RoomID, user domain.UserID, pos int) HandEvent {
	return HandEvent{Envelope: typed(EvtHandRaised), RoomID: room, UserID: user, Position: pos}
}

func NewHandLowered(room domain.RoomID, user domain.UserID) HandEvent {
	return HandEvent{Envelope: typed(EvtHandLowered), RoomID: room, UserID: user}
}

type RecordingEvent struct {
	Envelope
	RoomID          domain.RoomID `json:"roomId"`
	Recording       bool          `json:"recording"`
	DurationSeconds float64       `json:"durationSeconds"`
}

func NewRecording(room domain.RoomID, recording bool, seconds float64) RecordingEvent {
	t := EvtRecordingStopped
	if recording {
		t = EvtRecordingStarted
	}
	return RecordingEvent{Envelope: typed(t), RoomID: room, Recording: recording, DurationSeconds: seconds}
}

type OwnerChangedEvent struct {
	Envelope
	RoomID domain.RoomID `json:"roomId"`
	Owner  domain.UserID `json:"owner"`
}

func NewOwnerChanged(room domain.RoomID, owner domain.UserID) OwnerChangedEvent {
	return OwnerChangedEvent{Envelope: typed(EvtOwnerChanged), RoomID: room, Owner: owner}
}

// BattleEvent covers every battle lifecycle broadcast.
type BattleEvent struct {
	Envelope
	BattleSnapshot
	RoundTally domain.Tally  `json:"roundTally,omitempty"`
	Winner     domain.UserID `json:"winner,omitempty"`
	Tie        bool          `json:"tie,omitempty"`
	Aborted    bool          `json:"aborted,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

func NewBattleEvent(t string, s BattleSnapshot) BattleEvent {
	return BattleEvent{Envelope: typed(t), BattleSnapshot: s}
}

type VoteAcceptedEvent struct {
	Envelope
	BattleID     domain.BattleID `json:"battleId"`
	Round        int             `json:"round"`
	ContestantID domain.UserID   `json:"contestantId"`
}

func NewVoteAccepted(b domain.BattleID, round int, contestant domain.UserID) VoteAcceptedEvent {
	return VoteAcceptedEvent{Envelope: typed(EvtVoteAccepted), BattleID: b, Round: round, ContestantID: contestant}
}

// SignalPayload is opaque signaling data; the hub never looks inside.
type SignalPayload struct {
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Data      json.RawMessage `json:"payload,omitempty"`
}

func (p SignalPayload) Empty() bool {
	return len(p.SDP) == 0 && len(p.Candidate) == 0 && len(p.Data) == 0
}

type SignalEvent struct {
	Envelope
	FromUserID domain.UserID `json:"fromUserId"`
	SignalPayload
}

func NewSignal(from domain.UserID, p SignalPayload) SignalEvent {
	return SignalEvent{Envelope: typed(EvtSignal), FromUserID: from, SignalPayload: p}
}

type LayerUpdatedEvent struct {
	Envelope
	RoomID          domain.RoomID   `json:"roomId"`
	FromUserID      domain.UserID   `json:"fromUserId"`
	CollaborationID string          `json:"collaborationId"`
	LayerData       json.RawMessage `json:"layerData,omitempty"`
}

func NewLayerUpdated(room domain.RoomID, from domain.UserID, collab string, data json.RawMessage) LayerUpdatedEvent {
	return LayerUpdatedEvent{
		Envelope:        typed(EvtLayerUpdated),
		RoomID:          room,
		FromUserID:      from,
		CollaborationID: collab,
		LayerData:       data,
	}
}

type ErrorEvent struct {
	Envelope
	Code        string `json:"code"`
	Error       string `json:"error"`
	RequestType string `json:"requestType,omitempty"`
}

func NewError(requestType string, err error) ErrorEvent {
	return ErrorEvent{Envelope: typed(EvtError), Code: domain.Code(err), Error: err.Error(), RequestType: requestType}
}

type WhoAmIEvent struct {
	Envelope
	User   domain.User   `json:"user"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
}

func NewWhoAmI(u domain.User, room domain.RoomID) WhoAmIEvent {
	return WhoAmIEvent{Envelope: typed(EvtWhoAmI), User: u, RoomID: room}
}

// Simple is an event with no fields besides its type (pong, left).
type Simple struct {
	Envelope
}

func NewSimple(t string) Simple { return Simple{Envelope: typed(t)} }
