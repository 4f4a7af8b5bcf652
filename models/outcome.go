package models

// OutcomeKind - значение колонки outcome.
type OutcomeKind string

const (
	OutcomeDefault   OutcomeKind = "default"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome - закрытый набор исходов: DefaultOutcome | CancelledOutcome. nil означает "нет исхода".
type Outcome interface {
	Kind() OutcomeKind
	Reason() string
	isOutcome()
}

// DefaultOutcome - победа по неявке соперника.
type DefaultOutcome struct {
	WinnerPairID int
	Note         string
}

func (o DefaultOutcome) Kind() OutcomeKind { return OutcomeDefault }
func (o DefaultOutcome) Reason() string    { return o.Note }
func (DefaultOutcome) isOutcome()          {}

// CancelledOutcome - матч отменен администратором.
type CancelledOutcome struct {
	Note string
}

func (o CancelledOutcome) Kind() OutcomeKind { return OutcomeCancelled }
func (o CancelledOutcome) Reason() string    { return o.Note }
func (CancelledOutcome) isOutcome()          {}

// OutcomeFromColumns собирает Outcome из плоских колонок БД.
// Для default без победителя возвращается nil.
func OutcomeFromColumns(kind *string, reason *string, defaultWinner *int) Outcome {
	if kind == nil {
		return nil
	}
	note := ""
	if reason != nil {
		note = *reason
	}
	switch OutcomeKind(*kind) {
	case OutcomeDefault:
		if defaultWinner == nil {
			return nil
		}
		return DefaultOutcome{WinnerPairID: *defaultWinner, Note: note}
	case OutcomeCancelled:
		return CancelledOutcome{Note: note}
	}
	return nil
}
