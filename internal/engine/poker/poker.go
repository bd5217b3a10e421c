package poker

import (
	"encoding/json"
	"hash/fnv"
	"log"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/engine"
)

const (
	DefaultBuyIn      = 1000
	DefaultSmallBlind = 10
	DefaultBigBlind   = 20
)

type BettingRound string

const (
	PreFlop  BettingRound = "pre-flop"
	Flop     BettingRound = "flop"
	Turn     BettingRound = "turn"
	River    BettingRound = "river"
	Showdown BettingRound = "showdown"
)

// Player actions accepted in a "game-action" message.
const (
	ActionFold  = "fold"
	ActionCheck = "check"
	ActionCall  = "call"
	ActionRaise = "raise"
	ActionAllIn = "all-in"
)

// PokerPlayer is one seat at the table.
type PokerPlayer struct {
	internal.PlayerState
	Chips    int    `json:"chips"`
	Cards    []Card `json:"cards"`
	Bet      int    `json:"bet"`
	HasActed bool   `json:"hasActed"`
	IsAllIn  bool   `json:"isAllIn"`
	IsFolded bool   `json:"isFolded"`
	Position int    `json:"position"`
}

func (p *PokerPlayer) active() bool { return !p.IsFolded && !p.IsAllIn }

// HandData is the poker-specific slice of GameState.GameData. HandSeed drives
// the next shuffle and advances every hand, so dealing is a pure function of
// the state.
type HandData struct {
	Players            []PokerPlayer `json:"players"`
	Deck               []Card        `json:"deck"`
	CommunityCards     []Card        `json:"communityCards"`
	Pot                int           `json:"pot"`
	CurrentBet         int           `json:"currentBet"`
	BettingRound       BettingRound  `json:"bettingRound"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	SmallBlindIndex    int           `json:"smallBlindIndex"`
	BigBlindIndex      int           `json:"bigBlindIndex"`
	HandSeed           int64         `json:"handSeed"`
}

func (d *HandData) seat(playerID string) int {
	for i := range d.Players {
		if d.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

type actionPayload struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// Engine runs one table. All state lives in the GameState it is handed.
type Engine struct{}

func New() *Engine { return &Engine{} }

// NewFactory returns the registry factory for the poker game type.
func NewFactory() engine.Factory {
	return func() engine.Engine { return New() }
}

// Metadata describes the poker game for the registry.
func Metadata() engine.Metadata {
	return engine.Metadata{
		MinPlayers: internal.MinPlayersToStart,
		MaxPlayers: internal.MaxPlayersPerRoom,
		DefaultSettings: internal.GameSettings{
			MaxRounds:        internal.DefaultMaxRounds,
			RoundTimeSeconds: internal.DefaultRoundTimeSeconds,
			BuyIn:            DefaultBuyIn,
			SmallBlind:       DefaultSmallBlind,
			BigBlind:         DefaultBigBlind,
		},
	}
}

func (e *Engine) InitializeGame(roomID string, players []internal.PlayerState, settings internal.GameSettings) *internal.GameState {
	if settings.BuyIn <= 0 {
		settings.BuyIn = DefaultBuyIn
	}
	if settings.SmallBlind <= 0 {
		settings.SmallBlind = DefaultSmallBlind
	}
	if settings.BigBlind <= 0 {
		settings.BigBlind = 2 * settings.SmallBlind
	}
	if settings.RoundTimeSeconds == 0 {
		settings.RoundTimeSeconds = internal.DefaultRoundTimeSeconds
	}

	seats := make([]PokerPlayer, len(players))
	scores := make(map[string]int, len(players))
	for i, p := range players {
		seats[i] = PokerPlayer{PlayerState: p, Chips: settings.BuyIn, Position: i}
		scores[p.ID] = 0
	}
	return &internal.GameState{
		RoomID:   roomID,
		GameType: internal.GameTypePoker,
		Phase:    internal.PhaseWaiting,
		Players:  append([]internal.PlayerState(nil), players...),
		Scores:   scores,
		Settings: settings,
		GameData: &HandData{
			Players:         seats,
			HandSeed:        seedFor(roomID),
			SmallBlindIndex: -1,
		},
	}
}

func (e *Engine) StartGame(state *internal.GameState) *internal.GameState {
	data := handData(state)
	if len(data.Players) < internal.MinPlayersToStart {
		return state
	}
	state.Phase = internal.PhasePlaying
	state.RoundNumber = 1
	state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
	e.dealNewHand(state, data)
	return state
}

// dealNewHand shuffles, deals two cards per seated player, posts blinds
// clamped to available chips and hands the turn to the seat after the big
// blind.
func (e *Engine) dealNewHand(state *internal.GameState, data *HandData) {
	data.Deck = ShuffledDeck(data.HandSeed)
	data.HandSeed = data.HandSeed*6364136223846793005 + 1442695040888963407
	data.CommunityCards = nil
	data.Pot = 0
	data.BettingRound = PreFlop

	for i := range data.Players {
		p := &data.Players[i]
		p.Cards = nil
		p.Bet = 0
		p.HasActed = false
		p.IsAllIn = false
		p.IsFolded = p.Chips <= 0
	}
	for i := range data.Players {
		p := &data.Players[i]
		if p.IsFolded {
			continue
		}
		p.Cards = []Card{data.Deck[0], data.Deck[1]}
		data.Deck = data.Deck[2:]
	}

	data.SmallBlindIndex = e.nextPlaying(data, data.SmallBlindIndex)
	data.BigBlindIndex = e.nextPlaying(data, data.SmallBlindIndex)
	postBlind(data, data.SmallBlindIndex, state.Settings.SmallBlind)
	postBlind(data, data.BigBlindIndex, state.Settings.BigBlind)
	data.CurrentBet = state.Settings.BigBlind
	data.CurrentPlayerIndex = e.nextActive(data, data.BigBlindIndex)
	log.Printf("[dealNewHand] room %s hand dealt, blinds at seats %d/%d", state.RoomID, data.SmallBlindIndex, data.BigBlindIndex)
}

// postBlind moves the blind from the seat's chips into the pot, clamped to
// what the seat has.
func postBlind(data *HandData, seat, amount int) {
	if seat < 0 {
		return
	}
	p := &data.Players[seat]
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.Bet += amount
	data.Pot += amount
	if p.Chips == 0 {
		p.IsAllIn = true
	}
}

func (e *Engine) HandleClientMessage(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	switch msg.Type {
	case internal.TypeGameAction:
		return e.handleAction(state, msg)
	case internal.TypeRoundTick:
		return e.handleTick(state)
	default:
		return state, nil, &internal.ValidationError{Reason: "unsupported message type for poker game"}
	}
}

func (e *Engine) handleAction(state *internal.GameState, msg *internal.ClientMessage) (*internal.GameState, []internal.ServerMessage, error) {
	if state.Phase != internal.PhasePlaying {
		return state, nil, &internal.ValidationError{Reason: "no hand in progress"}
	}
	data := handData(state)
	if data.BettingRound == Showdown {
		return state, nil, &internal.ValidationError{Reason: "hand is at showdown"}
	}
	seat := data.seat(msg.PlayerID)
	if seat < 0 {
		return state, nil, &internal.AuthorizationError{Reason: "player is not seated at this table"}
	}
	if seat != data.CurrentPlayerIndex {
		return state, nil, &internal.AuthorizationError{Reason: "not your turn"}
	}

	var payload actionPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return state, nil, &internal.ValidationError{Reason: "malformed action payload"}
	}
	if err := e.applyAction(state, data, seat, payload); err != nil {
		return state, nil, err
	}

	out := e.settle(state, data)
	out = append(out, internal.ServerMessage{
		Type:   internal.TypeGameState,
		RoomID: state.RoomID,
		Data:   state,
	})
	return state, out, nil
}

func (e *Engine) applyAction(state *internal.GameState, data *HandData, seat int, payload actionPayload) error {
	p := &data.Players[seat]
	if !p.active() {
		return &internal.ValidationError{Reason: "player cannot act"}
	}

	switch payload.Action {
	case ActionFold:
		p.IsFolded = true

	case ActionCheck:
		if p.Bet != data.CurrentBet {
			return &internal.ValidationError{Reason: "cannot check facing a bet"}
		}

	case ActionCall:
		pay := data.CurrentBet - p.Bet
		if pay <= 0 {
			return &internal.ValidationError{Reason: "nothing to call"}
		}
		commit(data, p, pay)

	case ActionRaise:
		minRaise := 2 * data.CurrentBet
		if data.CurrentBet == 0 {
			minRaise = state.Settings.BigBlind
		}
		if payload.Amount < minRaise {
			return &internal.ValidationError{Reason: "raise below minimum"}
		}
		pay := payload.Amount - p.Bet
		if pay > p.Chips {
			return &internal.ValidationError{Reason: "raise exceeds available chips"}
		}
		commit(data, p, pay)
		data.CurrentBet = payload.Amount
		reopenAction(data, seat)

	case ActionAllIn:
		commit(data, p, p.Chips)
		if p.Bet > data.CurrentBet {
			data.CurrentBet = p.Bet
			reopenAction(data, seat)
		}

	default:
		return &internal.ValidationError{Reason: "unknown poker action"}
	}

	p.HasActed = true
	return nil
}

// commit moves chips from the seat into the pot, flagging all-in when the
// stack empties.
func commit(data *HandData, p *PokerPlayer, amount int) {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.Bet += amount
	data.Pot += amount
	if p.Chips == 0 {
		p.IsAllIn = true
	}
}

// reopenAction clears acted flags for every other live seat after a raise.
func reopenAction(data *HandData, raiser int) {
	for i := range data.Players {
		if i != raiser && data.Players[i].active() {
			data.Players[i].HasActed = false
		}
	}
}

// settle advances the hand after an action: uncontested win, betting-round
// completion, or just the turn.
func (e *Engine) settle(state *internal.GameState, data *HandData) []internal.ServerMessage {
	if e.unfoldedCount(data) == 1 {
		return e.showdown(state, data)
	}
	if !e.roundComplete(data) {
		data.CurrentPlayerIndex = e.nextActive(data, data.CurrentPlayerIndex)
		return nil
	}
	// When everyone left is all-in the reset round is immediately complete
	// again, so this runs the remaining streets out to showdown.
	for e.roundComplete(data) {
		if data.BettingRound == River {
			return e.showdown(state, data)
		}
		e.advanceBettingRound(data)
	}
	return nil
}

func (e *Engine) roundComplete(data *HandData) bool {
	for i := range data.Players {
		p := &data.Players[i]
		if p.active() && (!p.HasActed || p.Bet != data.CurrentBet) {
			return false
		}
	}
	return true
}

func (e *Engine) advanceBettingRound(data *HandData) {
	for i := range data.Players {
		data.Players[i].Bet = 0
		data.Players[i].HasActed = false
	}
	data.CurrentBet = 0

	switch data.BettingRound {
	case PreFlop:
		data.BettingRound = Flop
		data.CommunityCards = append(data.CommunityCards, data.Deck[:3]...)
		data.Deck = data.Deck[3:]
	case Flop:
		data.BettingRound = Turn
		data.CommunityCards = append(data.CommunityCards, data.Deck[0])
		data.Deck = data.Deck[1:]
	case Turn:
		data.BettingRound = River
		data.CommunityCards = append(data.CommunityCards, data.Deck[0])
		data.Deck = data.Deck[1:]
	}
	// Post-flop action starts at the small blind, or the first live seat
	// after it.
	data.CurrentPlayerIndex = e.nextActive(data, e.prevSeat(data, data.SmallBlindIndex))
}

// showdown resolves the pot, reports the result and deals the next hand. The
// pot splits evenly among tied winners with the remainder going to the first
// winner in seat order. Chips are the authoritative stacks; the Scores map
// accumulates pot winnings only, so it never decreases.
func (e *Engine) showdown(state *internal.GameState, data *HandData) []internal.ServerMessage {
	data.BettingRound = Showdown
	for len(data.CommunityCards) < 5 && e.unfoldedCount(data) > 1 {
		e.dealRemainingStreet(data)
	}

	winners := e.winners(data)
	if len(winners) > 0 {
		share := data.Pot / len(winners)
		remainder := data.Pot - share*len(winners)
		for i, seat := range winners {
			won := share
			if i == 0 {
				won += remainder
			}
			data.Players[seat].Chips += won
			state.Scores[data.Players[seat].ID] += won
		}
	}
	data.Pot = 0

	winnerIDs := make([]string, len(winners))
	for i, seat := range winners {
		winnerIDs[i] = data.Players[seat].ID
	}
	log.Printf("[showdown] room %s hand %d won by %v", state.RoomID, state.RoundNumber, winnerIDs)

	out := []internal.ServerMessage{
		{
			Type:   internal.TypeRoundEnd,
			RoomID: state.RoomID,
			Data: map[string]any{
				"hand":    state.RoundNumber,
				"winners": winnerIDs,
				"scores":  state.Scores,
			},
		},
		{
			Type:   internal.TypeScoreUpdate,
			RoomID: state.RoomID,
			Data:   state.Scores,
		},
	}

	e.dropBustedSeats(state, data)
	if e.fundedCount(data) < 2 {
		state.Phase = internal.PhaseFinished
		out = append(out, internal.ServerMessage{
			Type:   internal.TypeGameEnded,
			RoomID: state.RoomID,
			Data:   map[string]any{"scores": state.Scores},
		})
		return out
	}

	state.RoundNumber++
	state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
	e.dealNewHand(state, data)
	return out
}

// dealRemainingStreet burns nothing and deals the next community cards when
// all live players are all-in before the river.
func (e *Engine) dealRemainingStreet(data *HandData) {
	need := 3
	if len(data.CommunityCards) >= 3 {
		need = 1
	}
	data.CommunityCards = append(data.CommunityCards, data.Deck[:need]...)
	data.Deck = data.Deck[need:]
}

// winners returns the seats sharing the best hand, or the single unfolded
// seat when the pot is uncontested.
func (e *Engine) winners(data *HandData) []int {
	var contenders []int
	for i := range data.Players {
		if !data.Players[i].IsFolded && len(data.Players[i].Cards) == 2 {
			contenders = append(contenders, i)
		}
	}
	if len(contenders) <= 1 {
		return contenders
	}

	var best HandRank
	var winners []int
	for _, seat := range contenders {
		cards := append(append([]Card(nil), data.Players[seat].Cards...), data.CommunityCards...)
		rank := BestOf7(cards)
		switch {
		case len(winners) == 0 || Compare(rank, best) > 0:
			best = rank
			winners = []int{seat}
		case Compare(rank, best) == 0:
			winners = append(winners, seat)
		}
	}
	return winners
}

// dropBustedSeats removes disconnected or broke players between hands and
// mirrors the removal onto the roster.
func (e *Engine) dropBustedSeats(state *internal.GameState, data *HandData) {
	kept := data.Players[:0]
	for _, p := range data.Players {
		if state.FindPlayer(p.ID) >= 0 {
			kept = append(kept, p)
		}
	}
	data.Players = kept
	for i := range data.Players {
		data.Players[i].Position = i
	}
	if data.SmallBlindIndex >= len(data.Players) {
		data.SmallBlindIndex = -1
	}
}

// handleTick counts the acting player's clock down and folds them at zero.
func (e *Engine) handleTick(state *internal.GameState) (*internal.GameState, []internal.ServerMessage, error) {
	if state.Phase != internal.PhasePlaying {
		return state, nil, nil
	}
	data := handData(state)
	if data.BettingRound == Showdown {
		return state, nil, nil
	}
	state.TimeRemaining -= 1000
	if state.TimeRemaining > 0 {
		return state, []internal.ServerMessage{{
			Type:   internal.TypeTimerUpdate,
			RoomID: state.RoomID,
			Data:   map[string]int64{"timeRemaining": state.TimeRemaining},
		}}, nil
	}

	seat := data.CurrentPlayerIndex
	if seat >= 0 && seat < len(data.Players) {
		log.Printf("[handleTick] room %s seat %d timed out, folding", state.RoomID, seat)
		data.Players[seat].IsFolded = true
		data.Players[seat].HasActed = true
	}
	state.TimeRemaining = int64(state.Settings.RoundTimeSeconds) * 1000
	out := e.settle(state, data)
	out = append(out, internal.ServerMessage{
		Type:   internal.TypeGameState,
		RoomID: state.RoomID,
		Data:   state,
	})
	return state, out, nil
}

func (e *Engine) ValidateGameAction(state *internal.GameState, playerID, action string) bool {
	if state.Phase != internal.PhasePlaying {
		return false
	}
	data := handData(state)
	seat := data.seat(playerID)
	if seat < 0 || seat != data.CurrentPlayerIndex || data.BettingRound == Showdown {
		return false
	}
	switch action {
	case ActionFold, ActionCall, ActionCheck, ActionRaise, ActionAllIn:
		return data.Players[seat].active()
	default:
		return false
	}
}

func (e *Engine) AddPlayer(state *internal.GameState, player internal.PlayerState) *internal.GameState {
	if state.FindPlayer(player.ID) >= 0 {
		return state
	}
	state.Players = append(state.Players, player)
	data := handData(state)
	seat := PokerPlayer{
		PlayerState: player,
		Chips:       state.Settings.BuyIn,
		Position:    len(data.Players),
		// Seated out until the next deal.
		IsFolded: state.Phase == internal.PhasePlaying,
	}
	data.Players = append(data.Players, seat)
	if _, ok := state.Scores[player.ID]; !ok {
		state.Scores[player.ID] = 0
	}
	return state
}

func (e *Engine) RemovePlayer(state *internal.GameState, playerID string) (*internal.GameState, []internal.ServerMessage) {
	idx := state.FindPlayer(playerID)
	if idx >= 0 {
		state.Players = append(state.Players[:idx], state.Players[idx+1:]...)
	}
	data := handData(state)
	seat := data.seat(playerID)
	if seat < 0 {
		return state, nil
	}
	// Fold the seat for the rest of the hand; dropBustedSeats reaps it at the
	// next showdown.
	p := &data.Players[seat]
	var out []internal.ServerMessage
	if !p.IsFolded {
		p.IsFolded = true
		p.HasActed = true
		if state.Phase == internal.PhasePlaying && data.BettingRound != Showdown {
			if e.unfoldedCount(data) == 1 {
				out = e.showdown(state, data)
			} else if seat == data.CurrentPlayerIndex {
				out = e.settle(state, data)
			}
		}
	}
	return state, out
}

func (e *Engine) CalculateScore(state *internal.GameState, playerID, action string) int {
	return state.Scores[playerID]
}

func (e *Engine) EndGame(state *internal.GameState) *internal.GameState {
	state.Phase = internal.PhaseFinished
	return state
}

// RedactFor hides the deck and every other player's hole cards.
func (e *Engine) RedactFor(state *internal.GameState, playerID string) *internal.GameState {
	data := handData(state)
	redacted := *state
	masked := *data
	masked.Deck = nil
	masked.Players = make([]PokerPlayer, len(data.Players))
	copy(masked.Players, data.Players)
	for i := range masked.Players {
		if masked.Players[i].ID != playerID {
			masked.Players[i].Cards = nil
		}
	}
	redacted.GameData = &masked
	return &redacted
}

// Seat iteration helpers. next* walk clockwise from the given seat, wrapping,
// and return -1 when no seat qualifies.

func (e *Engine) nextPlaying(data *HandData, from int) int {
	return e.nextWhere(data, from, func(p *PokerPlayer) bool { return !p.IsFolded })
}

func (e *Engine) nextActive(data *HandData, from int) int {
	return e.nextWhere(data, from, (*PokerPlayer).active)
}

func (e *Engine) nextWhere(data *HandData, from int, ok func(*PokerPlayer) bool) int {
	n := len(data.Players)
	if n == 0 {
		return -1
	}
	if from < 0 {
		from = n - 1
	}
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		if ok(&data.Players[seat]) {
			return seat
		}
	}
	return -1
}

func (e *Engine) prevSeat(data *HandData, seat int) int {
	n := len(data.Players)
	if n == 0 {
		return -1
	}
	return (seat - 1 + n) % n
}

func (e *Engine) unfoldedCount(data *HandData) int {
	count := 0
	for i := range data.Players {
		if !data.Players[i].IsFolded {
			count++
		}
	}
	return count
}

func (e *Engine) fundedCount(data *HandData) int {
	count := 0
	for i := range data.Players {
		if data.Players[i].Chips > 0 {
			count++
		}
	}
	return count
}

func handData(state *internal.GameState) *HandData {
	if data, ok := state.GameData.(*HandData); ok && data != nil {
		return data
	}
	data := &HandData{SmallBlindIndex: -1}
	state.GameData = data
	return data
}

func seedFor(roomID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(roomID))
	return int64(h.Sum64())
}
