// catalog/resolver.go
package catalog

import (
	"errors"
)

// ErrUnknownQuestion is returned when a question key has no mapped attribute.
var ErrUnknownQuestion = errors.New("unknown question")

// Resolver 把问题标识映射到实体属性。The game does no natural-language
// understanding: custom wording is only ever a display label, the question
// key alone selects the answered attribute.
type Resolver struct {
	questions map[string]string // question key -> attribute id
}

func NewResolver() *Resolver {
	return &Resolver{
		questions: map[string]string{
			"alive":            "isAlive",
			"food":             "isFood",
			"electronic":       "isElectronic",
			"bigger_than_hand": "isBiggerThanHand",
			"portable":         "isPortable",
			"animal":           "isAnimal",
			"vehicle":          "isVehicle",
			"indoor":           "isIndoor",
			"outdoor":          "isOutdoor",
		},
	}
}

// Resolve looks up one attribute on the entity. Attributes not recorded as
// a definite yes or no resolve to maybe.
func (r *Resolver) Resolve(e *Entity, questionKey string) (Answer, error) {
	attr, ok := r.questions[questionKey]
	if !ok {
		return "", ErrUnknownQuestion
	}

	switch v := e.Attributes[attr]; v {
	case AnswerYes, AnswerNo:
		return v, nil
	default:
		return AnswerMaybe, nil
	}
}
