package lttbplot

import (
	"github.com/pkg/errors"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is one button of the control surface.
type Action struct {
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	Decimation DecimationOptions `json:"decimation"`

	host *ChartHost
}

// Handler replaces the host's decimation options with a copy of the action's.
func (a Action) Handler() error {
	return a.host.SetDecimation(a.Decimation.Clone())
}

// Controls is the set of actions bound to a chart host.
type Controls struct {
	actions []Action
}

func NewControls(host *ChartHost) *Controls {
	return &Controls{
		actions: []Action{
			{
				Name:       "LTTB decimation (30000 samples)",
				Slug:       "lttb-30000",
				Decimation: LTTBOptions(30000),
				host:       host,
			},
			{
				Name:       "LTTB decimation (50000 samples)",
				Slug:       "lttb-50000",
				Decimation: LTTBOptions(50000),
				host:       host,
			},
		},
	}
}

// Actions returns a copy of the actions. Changing them does not change the
// buttons.
func (c *Controls) Actions() []Action {
	return Map(c.actions, func(action Action) Action {
		action.Decimation = action.Decimation.Clone()
		return action
	})
}

// Trigger runs the action with the given slug.
func (c *Controls) Trigger(slug string) (Action, error) {
	for _, action := range c.actions {
		if action.Slug != slug {
			continue
		}

		if err := action.Handler(); err != nil {
			return action, errors.Wrapf(err, "action %q failed", action.Name)
		}

		return action, nil
	}

	return Action{}, errors.Wrapf(ErrUnknownAction, "%q", slug)
}
