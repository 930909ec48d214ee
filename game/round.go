// game/round.go
package game

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/guessbox/gameserver/catalog"
)

// ErrDuplicateQuestion is returned when a question label was already asked
// this round.
var ErrDuplicateQuestion = errors.New("that question was already asked")

// Outcome records how a round ended. It is set at most once; a finished
// round is superseded by a fresh one, never restarted.
type Outcome struct {
	WinnerID  string // session id of the winning guesser, empty on forfeit
	Forfeited bool
}

// GuessVerdict classifies the result of a guess attempt.
type GuessVerdict int

const (
	GuessIgnored GuessVerdict = iota // inactive round or empty text
	GuessIncorrect
	GuessCorrect
)

// Round 持有一个房间单局的全部状态：秘密对象、已提问历史和弃权集合。
type Round struct {
	secret    *catalog.Entity
	asked     map[string]struct{} // lowercase labels
	forfeited map[string]struct{} // player ids
	active    bool
	outcome   *Outcome
}

// Start draws a secret entity uniformly from the entities not yet used in
// this room and returns the new active round. When every entity has been
// used the set is cleared first, so repetition only happens after a full
// cycle. The chosen name is added to used.
func Start(cat *catalog.Catalog, used map[string]bool) *Round {
	available := cat.Available(used)
	if len(available) == 0 {
		clear(used)
		available = cat.Available(used)
	}

	secret := available[rand.Intn(len(available))]
	used[strings.ToLower(secret.Name)] = true

	return &Round{
		secret:    secret,
		asked:     make(map[string]struct{}),
		forfeited: make(map[string]struct{}),
		active:    true,
	}
}

func (r *Round) Active() bool {
	return r.active
}

// SecretName reveals the secret entity's name. Broadcast only at game over.
func (r *Round) SecretName() string {
	return r.secret.Name
}

func (r *Round) Outcome() *Outcome {
	return r.outcome
}

// QuestionResult carries the display label and answer for a broadcast.
type QuestionResult struct {
	Label  string
	Answer catalog.Answer
}

// AskQuestion resolves one question against the secret entity. The dedup
// label is the trimmed custom text when present, the raw key otherwise,
// compared case-insensitively. Returns nil with no error when the round is
// not active. On any error nothing is recorded.
func (r *Round) AskQuestion(resolver *catalog.Resolver, questionKey, customText string) (*QuestionResult, error) {
	if !r.active {
		return nil, nil
	}

	label := strings.TrimSpace(customText)
	if label == "" {
		label = questionKey
	}

	dedupKey := strings.ToLower(label)
	if _, asked := r.asked[dedupKey]; asked {
		return nil, ErrDuplicateQuestion
	}

	answer, err := resolver.Resolve(r.secret, questionKey)
	if err != nil {
		return nil, err
	}

	r.asked[dedupKey] = struct{}{}
	return &QuestionResult{Label: label, Answer: answer}, nil
}

// Guess compares the text against the secret entity's name, trimmed and
// case-insensitive. A correct guess ends the round with the guesser as
// winner.
func (r *Round) Guess(text, guesserID string) GuessVerdict {
	if !r.active {
		return GuessIgnored
	}

	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return GuessIgnored
	}

	if cleaned != strings.ToLower(r.secret.Name) {
		return GuessIncorrect
	}

	r.active = false
	r.outcome = &Outcome{WinnerID: guesserID}
	return GuessCorrect
}

// Forfeit marks the player as having given up. Allowed even after the round
// has ended; duplicates are no-ops. Returns true when this forfeit ends an
// active round because every current room member has now forfeited.
func (r *Round) Forfeit(playerID string, memberIDs []string) bool {
	r.forfeited[playerID] = struct{}{}

	if !r.active || len(memberIDs) == 0 {
		return false
	}
	for _, id := range memberIDs {
		if _, ok := r.forfeited[id]; !ok {
			return false
		}
	}

	r.active = false
	r.outcome = &Outcome{Forfeited: true}
	return true
}
