package observerproto

import "futdrill.ai/internal/sim/world"

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeInput     = "INPUT"
	TypeCommand   = "COMMAND"
	TypeFrame     = "FRAME"
	TypeStatus    = "STATUS"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: claim keyboard control of a player. Only loopback clients
	// are accepted at all, so there is no further auth.
	ControlID string `json:"control_id,omitempty"`
}

// Client -> Server. Latest held keys for the controlled player; the
// simulation samples it once per tick.
type InputMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Input           world.Input `json:"input"`
}

const (
	CommandNext     = "next"
	CommandPrevious = "previous"
	CommandRestart  = "restart"
	CommandStart    = "start"
)

// Client -> Server. Playlist navigation.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Command         string `json:"command"`
	Index           int    `json:"index,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string             `json:"protocol_version"`
	Playlist        string             `json:"playlist"`
	TickRateHz      int                `json:"tick_rate_hz"`
	Scenarios       []ScenarioInfo     `json:"scenarios"`
	Maps            map[string]MapInfo `json:"maps"`
}

type ScenarioInfo struct {
	Name string `json:"name"`
	Map  string `json:"map"`
}

// MapInfo is the static geometry a client draws once.
type MapInfo struct {
	Segments [][4]float64 `json:"segments"`
	Disks    [][3]float64 `json:"disks"`
	Goals    []GoalInfo   `json:"goals"`
}

type GoalInfo struct {
	Team string     `json:"team"`
	Min  [2]float64 `json:"min"`
	Max  [2]float64 `json:"max"`
}

// Server -> Client. Sent every render frame.
type FrameMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Generation      uint64      `json:"generation"`
	Bodies          []BodyState `json:"bodies"`
}

type BodyState struct {
	ID       string     `json:"id"`
	Team     string     `json:"team"`
	Bot      bool       `json:"bot,omitempty"`
	Pos      [2]float64 `json:"pos"`
	Radius   float64    `json:"radius"`
	Charging bool       `json:"charging,omitempty"`
	Kicked   bool       `json:"kicked,omitempty"`
}

// Server -> Client. Sent when the scenario state changes and about once a
// second otherwise.
type StatusMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Playlist        string  `json:"playlist"`
	Index           int     `json:"index"`
	Count           int     `json:"count"`
	Scenario        string  `json:"scenario"`
	Generation      uint64  `json:"generation"`
	Tick            uint64  `json:"tick"`
	State           string  `json:"state"`
	Reason          string  `json:"reason,omitempty"`
	Elapsed         float64 `json:"elapsed"`
	Kicks           int     `json:"kicks"`
	TotalElapsed    float64 `json:"total_elapsed"`
	TotalKicks      int     `json:"total_kicks"`
	Completed       []bool  `json:"completed"`
	Finished        bool    `json:"finished,omitempty"`
}
