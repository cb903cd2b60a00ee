package game

import (
	"slices"
	"strings"
	"unicode/utf8"

	"planpoker/internal/pkg/errs"
)

const (
	// UnknownVote is accepted under every estimate set.
	UnknownVote = "unknown"

	// PresetCustom names user-defined estimate sets.
	PresetCustom = "custom"

	// MaxCardLabelLength and MaxCardValueLength bound card fields, in characters.
	MaxCardLabelLength = 10
	MaxCardValueLength = 10

	// MaxCards bounds the size of an estimate set.
	MaxCards = 24

	maxPresetNameLength  = 24
	maxDescriptionLength = 80
)

// Card is one selectable estimate.
type Card struct {
	Value       string `json:"value" yaml:"value"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
}

// CardSet is the vocabulary of votes a game accepts.
type CardSet struct {
	Preset string `json:"preset" yaml:"preset"`
	Cards  []Card `json:"cards" yaml:"cards"`
}

// Accepts reports whether value is a legal vote under the set.
func (s CardSet) Accepts(value string) bool {
	if value == UnknownVote {
		return true
	}
	return slices.ContainsFunc(s.Cards, func(c Card) bool { return c.Value == value })
}

func (s CardSet) clone() CardSet {
	return CardSet{Preset: s.Preset, Cards: slices.Clone(s.Cards)}
}

// NormalizeCardSet cleans a client-supplied estimate set.
//
// Cards with a blank label are dropped, labels and values are truncated, a blank value
// falls back to the lowercased label, and duplicate values keep their first card. A set
// left without cards is rejected with ErrCardSetInvalid.
func NormalizeCardSet(raw CardSet) (CardSet, error) {
	out := CardSet{
		Preset: truncate(strings.TrimSpace(raw.Preset), maxPresetNameLength),
		Cards:  make([]Card, 0, min(len(raw.Cards), MaxCards)),
	}
	if out.Preset == "" {
		out.Preset = PresetCustom
	}

	seen := make(map[string]struct{}, len(raw.Cards))
	for _, c := range raw.Cards {
		if len(out.Cards) == MaxCards {
			break
		}

		label := truncate(strings.TrimSpace(c.Label), MaxCardLabelLength)
		if label == "" {
			continue
		}

		value := strings.TrimSpace(c.Value)
		if value == "" {
			value = strings.ToLower(label)
		}
		value = truncate(value, MaxCardValueLength)

		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}

		out.Cards = append(out.Cards, Card{
			Value:       value,
			Label:       label,
			Description: truncate(strings.TrimSpace(c.Description), maxDescriptionLength),
		})
	}

	if len(out.Cards) == 0 {
		return CardSet{}, errs.NewError(errs.ErrCardSetInvalid)
	}

	return out, nil
}

// CardSet returns the game's active estimate set.
func (g *Game) CardSet() CardSet {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.activeSetLocked().clone()
}

// UpdateCardSet replaces the game's estimate set and withdraws every vote the new set no
// longer accepts. It returns the applied set and the affected users in join order.
func (g *Game) UpdateCardSet(raw CardSet) (CardSet, []string, error) {
	set, err := NormalizeCardSet(raw)
	if err != nil {
		return CardSet{}, nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.cardSet = &set
	g.touchLocked()

	return set.clone(), g.invalidateLocked(set), nil
}

// ProposeCardSet applies raw only if the game has no configured estimate set yet, so the
// first configuration wins. It reports whether the proposal was applied and which users
// lost their vote.
func (g *Game) ProposeCardSet(raw CardSet) (applied bool, invalidated []string) {
	set, err := NormalizeCardSet(raw)
	if err != nil {
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cardSet != nil {
		return false, nil
	}

	g.cardSet = &set
	g.touchLocked()

	return true, g.invalidateLocked(set)
}

func (g *Game) activeSetLocked() CardSet {
	if g.cardSet != nil {
		return *g.cardSet
	}
	return g.defaultSet
}

func (g *Game) invalidateLocked(set CardSet) []string {
	invalidated := []string{}

	for userID, v := range g.votes {
		if set.Accepts(v) {
			continue
		}
		delete(g.votes, userID)
		if u, ok := g.users[userID]; ok {
			u.HasVoted = false
		}
		invalidated = append(invalidated, userID)
	}

	slices.SortFunc(invalidated, func(a, b string) int {
		return g.joinOrderLocked(a) - g.joinOrderLocked(b)
	})

	return invalidated
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
