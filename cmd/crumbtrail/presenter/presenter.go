package presenter

import (
	"encoding/json"
	"sync"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
)

type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// View is a rendered trail: the home crumb, the crumbs hidden behind the
// overflow affordance, then the crumbs shown inline after it.
type View struct {
	State    State         `json:"state"`
	Head     trail.Crumb   `json:"head"`
	Overflow []trail.Crumb `json:"overflow,omitempty"`
	Tail     []trail.Crumb `json:"tail"`
}

// Collapsed reports whether crumbs are hidden behind the overflow affordance
func (v View) Collapsed() bool {
	return len(v.Overflow) > 0
}

// Crumbs returns all crumbs in display order
func (v View) Crumbs() trail.Trail {
	crumbs := make(trail.Trail, 0, 1+len(v.Overflow)+len(v.Tail))
	crumbs = append(crumbs, v.Head)
	crumbs = append(crumbs, v.Overflow...)
	return append(crumbs, v.Tail...)
}

// Presenter decides between the full trail and a collapsed one. It starts
// collapsed; once expanded it stays expanded.
type Presenter struct {
	mutex sync.RWMutex
	state State
}

func New() *Presenter {
	return &Presenter{state: Collapsed}
}

func (p *Presenter) State() State {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.state
}

// Expand is the user opening the overflow affordance
func (p *Presenter) Expand() {
	p.mutex.Lock()
	p.state = Expanded
	p.mutex.Unlock()
}

// Render lays out t according to the current state without changing it
func (p *Presenter) Render(t trail.Trail) View {
	state := p.State()
	view := View{State: state}
	if len(t) == 0 {
		view.Head = trail.Crumb{Name: trail.HomeName, Target: trail.HomeTarget}
		return view
	}

	view.Head = t[0]
	if len(t) <= 2 || state == Expanded {
		view.Tail = append([]trail.Crumb{}, t[1:]...)
		return view
	}

	view.Overflow = append([]trail.Crumb{}, t[1:len(t)-1]...)
	view.Tail = []trail.Crumb{t[len(t)-1]}
	return view
}
