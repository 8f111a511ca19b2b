package chessdto

// ExecuteMsg is a state-changing call. Exactly one field must be set; the
// sender comes from the transaction, not the message.
type ExecuteMsg struct {
	CreateChallenge *CreateChallenge `json:"create_challenge,omitempty"`
	AcceptChallenge *ChallengeRef    `json:"accept_challenge,omitempty"`
	CancelChallenge *ChallengeRef    `json:"cancel_challenge,omitempty"`
	DeclareTimeout  *GameRef         `json:"declare_timeout,omitempty"`
	Turn            *Turn            `json:"turn,omitempty"`
}

type CreateChallenge struct {
	Opponent   string `json:"opponent,omitempty"`
	Color      string `json:"color,omitempty"`
	BlockLimit *int64 `json:"block_limit,omitempty"`
}

type ChallengeRef struct {
	ChallengeID uint64 `json:"challenge_id"`
}

type GameRef struct {
	GameID uint64 `json:"game_id"`
}

type Turn struct {
	GameID uint64 `json:"game_id"`
	Action Action `json:"action"`
}

// Action is one of move, offer_draw, accept_draw or resign.
type Action struct {
	Move       *MoveText `json:"move,omitempty"`
	OfferDraw  *MoveText `json:"offer_draw,omitempty"`
	AcceptDraw *struct{} `json:"accept_draw,omitempty"`
	Resign     *struct{} `json:"resign,omitempty"`
}

type MoveText struct {
	Move string `json:"move"`
}

// QueryMsg is a read-only call. Exactly one field must be set.
type QueryMsg struct {
	GetChallenge   *IDQuery          `json:"get_challenge,omitempty"`
	GetChallenges  *ChallengesQuery  `json:"get_challenges,omitempty"`
	GetGame        *IDQuery          `json:"get_game,omitempty"`
	GetGames       *GamesQuery       `json:"get_games,omitempty"`
	GetPlayerGames *PlayerGamesQuery `json:"get_player_games,omitempty"`
}

type IDQuery struct {
	ID uint64 `json:"id"`
}

type ChallengesQuery struct {
	Status string `json:"status,omitempty"`
	Player string `json:"player,omitempty"`
	After  uint64 `json:"after,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type GamesQuery struct {
	Player   string `json:"player,omitempty"`
	GameOver *bool  `json:"game_over,omitempty"`
	After    uint64 `json:"after,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type PlayerGamesQuery struct {
	Address  string `json:"address"`
	GameOver *bool  `json:"game_over,omitempty"`
	After    uint64 `json:"after,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// ExecuteRequest is the node envelope around an ExecuteMsg.
type ExecuteRequest struct {
	Sender string     `json:"sender"`
	Msg    ExecuteMsg `json:"msg"`
}

type QueryRequest struct {
	Msg QueryMsg `json:"msg"`
}
