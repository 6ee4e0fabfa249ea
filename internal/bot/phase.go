package bot

import "fmt"

type Phase int

const (
	LoggedOut Phase = iota
	Reserving
	Purchasing
)

func (p Phase) String() string {
	switch p {
	case LoggedOut:
		return "logged_out"
	case Reserving:
		return "reserving"
	case Purchasing:
		return "purchasing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Outcome int

const (
	Succeeded Outcome = iota
	Failed
)

func (o Outcome) String() string {
	if o == Succeeded {
		return "succeeded"
	}
	return "failed"
}

type Transition struct {
	From Phase
	On   Outcome
	To   Phase
}

// There is no terminal phase; Purchasing loops on itself.
var transitions = []Transition{
	{LoggedOut, Succeeded, Reserving},
	{LoggedOut, Failed, LoggedOut},
	{Reserving, Succeeded, Purchasing},
	{Reserving, Failed, Reserving},
	{Purchasing, Succeeded, Purchasing},
	{Purchasing, Failed, Purchasing},
}

// Transitions returns a copy of the full transition table.
func Transitions() []Transition {
	return append([]Transition(nil), transitions...)
}

// Next looks up where p goes on o. Unknown pairs stay put.
func Next(p Phase, o Outcome) Phase {
	for _, t := range transitions {
		if t.From == p && t.On == o {
			return t.To
		}
	}
	return p
}
