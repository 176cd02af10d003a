package realtime

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jamsync/jam-server/internal/domain"
)

// ErrMalformed is returned when an inbound frame is not a valid request.
var ErrMalformed = errors.New("realtime: malformed request")

// CommandType names a client request.
type CommandType string

const (
	CmdRemoveUser CommandType = "remove_user"
	CmdAddSong    CommandType = "add_song"
	CmdRemoveSong CommandType = "remove_song"
	CmdAddVote    CommandType = "add_vote"
	CmdRemoveVote CommandType = "remove_vote"
	CmdUpdate     CommandType = "update"
)

// Request is a decoded client command.
type Request struct {
	Type   CommandType `msgpack:"type"`
	UserID string      `msgpack:"user_id,omitempty"`
	SongID string      `msgpack:"song_id,omitempty"`
}

// DecodeRequest parses a MessagePack request and checks that the fields its type needs
// are present.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch req.Type {
	case CmdRemoveUser:
		if req.UserID == "" {
			return nil, fmt.Errorf("%w: %s requires user_id", ErrMalformed, req.Type)
		}
	case CmdAddSong, CmdRemoveSong, CmdAddVote, CmdRemoveVote:
		if req.SongID == "" {
			return nil, fmt.Errorf("%w: %s requires song_id", ErrMalformed, req.Type)
		}
	case CmdUpdate:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, req.Type)
	}
	return &req, nil
}

// EncodeRequest serialises a request. Clients and tests use it.
func EncodeRequest(req Request) ([]byte, error) {
	return msgpack.Marshal(req)
}

// ErrorKind is the wire category of an error frame.
type ErrorKind string

const (
	KindDecode        ErrorKind = "decode"
	KindForbidden     ErrorKind = "forbidden"
	KindDatabase      ErrorKind = "database"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindProvider      ErrorKind = "provider"
	KindRateLimited   ErrorKind = "rate_limited"
)

// Message types sent by the server.
const (
	MessageSongs = "songs"
	MessageError = "error"
)

// Song is one queue entry as sent to a client.
type Song struct {
	ID           string   `msgpack:"id"`
	UserID       string   `msgpack:"user_id,omitempty"`
	Name         string   `msgpack:"name"`
	Album        string   `msgpack:"album"`
	Artists      []string `msgpack:"artists"`
	DurationMS   int64    `msgpack:"duration_ms"`
	ImageURL     string   `msgpack:"image_url"`
	Votes        int      `msgpack:"votes"`
	HaveYouVoted *bool    `msgpack:"have_you_voted,omitempty"`
}

// WireError is the payload of an error frame.
type WireError struct {
	Kind    ErrorKind `msgpack:"kind"`
	Message string    `msgpack:"message"`
	Fatal   bool      `msgpack:"fatal"`
}

// Message is a server frame. Exactly one of Songs or Error is meaningful, per Type.
type Message struct {
	Type  string     `msgpack:"type"`
	Songs []Song     `msgpack:"songs,omitempty"`
	Error *WireError `msgpack:"error,omitempty"`
}

type songsMessage struct {
	Type  string `msgpack:"type"`
	Songs []Song `msgpack:"songs"`
}

type errorMessage struct {
	Type  string    `msgpack:"type"`
	Error WireError `msgpack:"error"`
}

// EncodeSongs serialises a queue snapshot. An empty queue is sent as an empty list.
func EncodeSongs(views []domain.SongView) ([]byte, error) {
	songs := make([]Song, len(views))
	for i, v := range views {
		songs[i] = Song{
			ID:           v.ID,
			UserID:       v.UserID,
			Name:         v.Name,
			Album:        v.Album,
			Artists:      v.Artists,
			DurationMS:   v.Duration.Milliseconds(),
			ImageURL:     v.ImageURL,
			Votes:        v.Votes,
			HaveYouVoted: v.HaveYouVoted,
		}
		if songs[i].Artists == nil {
			songs[i].Artists = []string{}
		}
	}
	return msgpack.Marshal(songsMessage{Type: MessageSongs, Songs: songs})
}

// EncodeError serialises an error frame.
func EncodeError(kind ErrorKind, message string, fatal bool) ([]byte, error) {
	return msgpack.Marshal(errorMessage{
		Type:  MessageError,
		Error: WireError{Kind: kind, Message: message, Fatal: fatal},
	})
}

// DecodeMessage parses a server frame.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
