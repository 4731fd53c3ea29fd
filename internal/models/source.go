package models

import "strings"

// Source is one bookmaker site being monitored.
type Source struct {
	// Name is the short worker name, used in registry keys.
	Name string `json:"name"`
	// Domain namespaces the storage keys.
	Domain string `json:"domain"`
	// Label is shown in chat alerts.
	Label string `json:"label"`
}

// Built-in sources
var (
	SourceFB   = Source{Name: "fb", Domain: "fb.com", Label: "FB"}
	SourceAkty = Source{Name: "akty", Domain: "akty.com", Label: "OB"}
)

// Sources lists the monitored sources in startup order.
var Sources = []Source{SourceFB, SourceAkty}

// SourceByName resolves a source by worker name or domain.
func SourceByName(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Sources {
		if s.Name == name || s.Domain == name {
			return s, nil
		}
	}
	return Source{}, ErrUnknownSource
}

// Counterpart returns the other monitored source.
func (s Source) Counterpart() Source {
	if s.Name == SourceFB.Name {
		return SourceAkty
	}
	return SourceFB
}

func (s Source) String() string {
	return s.Name
}
