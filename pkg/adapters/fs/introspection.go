package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// AdapterState exposes internal state for observability.
type AdapterState struct {
	Ext     string    `json:"ext"`
	Reject  []string  `json:"reject"`
	Started time.Time `json:"started"`
	Writes  int64     `json:"writes"`
	Creates int64     `json:"creates"`
	Removes int64     `json:"removes"`
	Renames int64     `json:"renames"`
}

// State implements introspection.Introspectable.
func (a *Adapter) State() any {
	return AdapterState{
		Ext:     a.config.Ext,
		Reject:  a.config.Reject,
		Started: a.started,
		Writes:  a.writes.Load(),
		Creates: a.creates.Load(),
		Removes: a.removes.Load(),
		Renames: a.renames.Load(),
	}
}

// ComponentType implements introspection.Component.
func (a *Adapter) ComponentType() string {
	return "filesystem"
}

var _ introspection.Introspectable = (*Adapter)(nil)
var _ introspection.Component = (*Adapter)(nil)
