package domain

import (
	"errors"
	"slices"
	"strings"
)

// StatusActive is the only account status that may be issued a token.
const StatusActive = "active"

var (
	ErrMissingSubject = errors.New("domain: identity has no subject id")
	ErrMissingScope   = errors.New("domain: identity has no scope")
	ErrInactive       = errors.New("domain: identity is not active")
)

// HumanName is one name of a person, e.g. {use: official, family: Anik,
// given: [Sadman]}.
type HumanName struct {
	Use    string   `json:"use,omitempty" yaml:"use,omitempty"`
	Family string   `json:"family,omitempty" yaml:"family,omitempty"`
	Given  []string `json:"given,omitempty" yaml:"given,omitempty"`
}

// Identity is the snapshot of a directory account taken when the primary
// credential is validated. It travels with the pending verification and is
// never fetched again.
type Identity struct {
	SubjectID string      `json:"sub"`
	Name      []HumanName `json:"name,omitempty"`
	Scope     []string    `json:"scope"`
	Status    string      `json:"status"`

	// Contact channels; either may be empty.
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Validate checks the fields needed to mint a token.
func (i Identity) Validate() error {
	switch {
	case i.SubjectID == "":
		return ErrMissingSubject
	case len(i.Scope) == 0:
		return ErrMissingScope
	case i.Status != StatusActive:
		return ErrInactive
	}
	return nil
}

// Clone returns a deep copy so the snapshot cannot be mutated through
// shared slices.
func (i Identity) Clone() Identity {
	out := i
	out.Scope = slices.Clone(i.Scope)
	if i.Name != nil {
		out.Name = make([]HumanName, len(i.Name))
		for n, name := range i.Name {
			name.Given = slices.Clone(name.Given)
			out.Name[n] = name
		}
	}
	return out
}

// DisplayName renders the first name entry as "Given Family".
func (i Identity) DisplayName() string {
	if len(i.Name) == 0 {
		return ""
	}
	n := i.Name[0]
	return strings.Join(strings.Fields(strings.Join(n.Given, " ")+" "+n.Family), " ")
}
