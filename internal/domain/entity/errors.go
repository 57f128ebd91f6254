package entity

import "errors"

var (
	// Message errors
	ErrInvalidMessageRole  = errors.New("invalid message role")
	ErrEmptyMessageContent = errors.New("empty message content")

	// Personality errors
	ErrUnknownTrait    = errors.New("unknown personality trait")
	ErrTraitOutOfRange = errors.New("trait value out of range")

	// Goal errors
	ErrInvalidGoalType = errors.New("invalid goal type")
	ErrGoalAlreadyDone = errors.New("goal already completed")

	// Identity errors
	ErrAlreadyNamed = errors.New("identity already named")
	ErrNotYetNamed  = errors.New("identity not yet named")

	// Curiosity errors
	ErrTopicTooShort    = errors.New("curiosity topic too short")
	ErrAlreadyCompleted = errors.New("curiosity item already completed")
)
