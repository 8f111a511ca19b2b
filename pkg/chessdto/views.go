package chessdto

type ChallengeView struct {
	ID            uint64 `json:"id"`
	Creator       string `json:"creator"`
	Opponent      string `json:"opponent,omitempty"`
	Color         string `json:"color"`
	BlockLimit    uint64 `json:"block_limit,omitempty"`
	Status        string `json:"status"`
	CreatedHeight uint64 `json:"created_height"`
	ClosedHeight  uint64 `json:"closed_height,omitempty"`
	GameID        uint64 `json:"game_id,omitempty"`
}

// GameSummary is the list projection of a game. TurnColor is empty once
// the game is over.
type GameSummary struct {
	ID          uint64 `json:"id"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Status      string `json:"status"`
	TurnColor   string `json:"turn_color,omitempty"`
	Winner      string `json:"winner,omitempty"`
	BlockLimit  uint64 `json:"block_limit,omitempty"`
	StartHeight uint64 `json:"start_height"`
	Moves       uint32 `json:"moves"`
}

type GameView struct {
	GameSummary
	ChallengeID uint64 `json:"challenge_id"`
	FEN         string `json:"fen"`
	WhiteClock  uint64 `json:"white_clock_baseline"`
	BlackClock  uint64 `json:"black_clock_baseline"`
	DrawOffer   string `json:"draw_offer,omitempty"`
	Method      string `json:"method,omitempty"`
	LastMove    string `json:"last_move,omitempty"`
	EndHeight   uint64 `json:"end_height,omitempty"`

	History []string `json:"history,omitempty"`
}

// Page is one slice of a paginated listing. Next is the cursor for the
// following page; zero means the listing is exhausted.
type Page[T any] struct {
	Items []T    `json:"items"`
	Next  uint64 `json:"next,omitempty"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response carries the event attributes of a committed call.
type Response struct {
	Attributes []Attribute `json:"attributes"`
}

func (r *Response) Add(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Get returns the first attribute named key.
func (r *Response) Get(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// TxResult is what the node returns for an executed transaction and what
// it broadcasts on the event feed.
type TxResult struct {
	TxHash     string       `json:"tx_hash"`
	Height     uint64       `json:"height"`
	TxIndex    uint32       `json:"tx_index"`
	Sender     string       `json:"sender"`
	Attributes []Attribute  `json:"attributes,omitempty"`
	Error      *DomainError `json:"error,omitempty"`
}

type NodeStatus struct {
	Height  uint64 `json:"height"`
	ChainID string `json:"chain_id"`
}
