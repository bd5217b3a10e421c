package poker

import "sort"

// Category classifies a 5-card hand. Higher is better.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = map[Category]string{
	HighCard:      "high card",
	OnePair:       "one pair",
	TwoPair:       "two pair",
	ThreeOfAKind:  "three of a kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full house",
	FourOfAKind:   "four of a kind",
	StraightFlush: "straight flush",
	RoyalFlush:    "royal flush",
}

// HandRank is a comparable hand value: the category plus an ordered tiebreak
// vector compared lexicographically within the category.
type HandRank struct {
	Category Category
	Tiebreak []Rank
}

func (h HandRank) Name() string { return categoryNames[h.Category] }

// Compare returns <0, 0 or >0 as a ranks below, equal to or above b.
func Compare(a, b HandRank) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	for i := 0; i < len(a.Tiebreak) && i < len(b.Tiebreak); i++ {
		if a.Tiebreak[i] != b.Tiebreak[i] {
			return int(a.Tiebreak[i]) - int(b.Tiebreak[i])
		}
	}
	return 0
}

// Evaluate5 ranks exactly five cards.
func Evaluate5(cards []Card) HandRank {
	ranks := make([]Rank, len(cards))
	for i, c := range cards {
		ranks[i] = c.Rank
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] > ranks[j] })

	flush := true
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			flush = false
			break
		}
	}
	straightHigh, straight := straightHighCard(ranks)

	switch {
	case flush && straight && straightHigh == Ace:
		return HandRank{Category: RoyalFlush, Tiebreak: []Rank{straightHigh}}
	case flush && straight:
		return HandRank{Category: StraightFlush, Tiebreak: []Rank{straightHigh}}
	}

	groups := groupByRank(ranks)
	switch {
	case groups[0].count == 4:
		return HandRank{Category: FourOfAKind, Tiebreak: groupTiebreak(groups)}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandRank{Category: FullHouse, Tiebreak: groupTiebreak(groups)}
	case flush:
		return HandRank{Category: Flush, Tiebreak: ranks}
	case straight:
		return HandRank{Category: Straight, Tiebreak: []Rank{straightHigh}}
	case groups[0].count == 3:
		return HandRank{Category: ThreeOfAKind, Tiebreak: groupTiebreak(groups)}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandRank{Category: TwoPair, Tiebreak: groupTiebreak(groups)}
	case groups[0].count == 2:
		return HandRank{Category: OnePair, Tiebreak: groupTiebreak(groups)}
	default:
		return HandRank{Category: HighCard, Tiebreak: ranks}
	}
}

// BestOf7 evaluates every 5-card subset of up to seven cards and returns the
// strongest. With 7 cards that is 21 combinations, cheap enough to brute
// force.
func BestOf7(cards []Card) HandRank {
	n := len(cards)
	if n <= 5 {
		return Evaluate5(cards)
	}
	var best HandRank
	first := true
	pick := make([]Card, 0, 5)
	var choose func(start, need int)
	choose = func(start, need int) {
		if need == 0 {
			r := Evaluate5(pick)
			if first || Compare(r, best) > 0 {
				best = r
				first = false
			}
			return
		}
		for i := start; i <= n-need; i++ {
			pick = append(pick, cards[i])
			choose(i+1, need-1)
			pick = pick[:len(pick)-1]
		}
	}
	choose(0, 5)
	return best
}

// straightHighCard reports the high card of a 5-card straight over the
// descending rank list, handling the wheel (A-5-4-3-2).
func straightHighCard(desc []Rank) (Rank, bool) {
	distinct := desc[:0:0]
	for i, r := range desc {
		if i == 0 || desc[i-1] != r {
			distinct = append(distinct, r)
		}
	}
	if len(distinct) != 5 {
		return 0, false
	}
	if distinct[0]-distinct[4] == 4 {
		return distinct[0], true
	}
	// Ace plays low in A-5-4-3-2.
	if distinct[0] == Ace && distinct[1] == Five && distinct[1]-distinct[4] == 3 {
		return Five, true
	}
	return 0, false
}

type rankGroup struct {
	rank  Rank
	count int
}

// groupByRank returns rank groups ordered by count descending, then rank
// descending. That ordering is exactly the tiebreak order for grouped hands.
func groupByRank(desc []Rank) []rankGroup {
	counts := make(map[Rank]int)
	for _, r := range desc {
		counts[r]++
	}
	groups := make([]rankGroup, 0, len(counts))
	for r, c := range counts {
		groups = append(groups, rankGroup{rank: r, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})
	return groups
}

func groupTiebreak(groups []rankGroup) []Rank {
	tb := make([]Rank, len(groups))
	for i, g := range groups {
		tb[i] = g.rank
	}
	return tb
}
