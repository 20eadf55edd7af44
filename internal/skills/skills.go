// Package skills holds the built-in capabilities. Each skill is stateless;
// anything that must outlive a turn goes through the memory store.
package skills

import (
	"slices"

	"jarvis/internal/intent"
	"jarvis/internal/skill"
)

func is(tag intent.Tag, tags ...intent.Tag) bool {
	return slices.Contains(tags, tag)
}

// Deps are the collaborators the built-in skills need. A nil collaborator
// leaves its skill registered but answering that the feature is
// unavailable.
type Deps struct {
	Owner       string
	Store       Store
	Prefs       Prefs
	Weather     *Weather
	Mixer       Mixer
	Launcher    Launcher
	Power       PowerController
	Home        Requester
	HomeNode    string
	Personality Personas
	Names       func() []string
	Checks      []Check
}

// Defaults returns the built-in skills in dispatch order.
func Defaults(d Deps) []skill.Skill {
	out := []skill.Skill{
		NewGreeting(d.Owner),
		NewClock(),
		NewJokes(),
	}
	if d.Weather != nil {
		out = append(out, d.Weather)
	}
	out = append(out,
		NewApps(d.Launcher),
		NewVolume(d.Mixer),
		NewPower(d.Power),
		NewPreferences(d.Store),
		NewContacts(d.Store),
		NewNotes(d.Store),
		NewGoals(d.Store),
		NewReminders(d.Store),
		NewHome(d.Home, d.HomeNode),
		NewPersonality(d.Personality),
		NewHelp(d.Names),
		NewDiagnostics(d.Checks),
	)
	return out
}
