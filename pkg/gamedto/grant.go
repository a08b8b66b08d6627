package gamedto

// JoinGrant is the private reply to a join or matchmaking pairing. The
// participant id is the caller's identity token and must not be broadcast.
type JoinGrant struct {
	SessionID     string       `json:"session_id"`
	ParticipantID string       `json:"participant_id"`
	Role          string       `json:"role"`
	Color         string       `json:"color,omitempty"`
	State         *PublicState `json:"state"`
}

const (
	RolePlayer    = "player"
	RoleSpectator = "spectator"
)
