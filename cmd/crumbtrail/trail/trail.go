package trail

import (
	"strings"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
)

const (
	HomeName    = "Home"
	HomeTarget  = "/"
	LoadingName = "Loading..."
)

// Crumb is one navigable element of a trail
type Crumb struct {
	Name   string `json:"name"`
	Target string `json:"targetPath"`
	Style  string `json:"styleHint"`
}

// Trail is the ordered list of crumbs for a path, home first
type Trail []Crumb

func (t Trail) Names() []string {
	names := make([]string, len(t))
	for i, crumb := range t {
		names[i] = crumb.Name
	}
	return names
}

// Override replaces the computed values of the crumb for one raw segment.
// Nil or empty fields keep the computed value.
type Override struct {
	Name   *string `json:"name,omitempty"`
	Target *string `json:"targetPath,omitempty"`
	Style  *string `json:"styleHint,omitempty"`
}

// Overrides are keyed by raw segment text
type Overrides map[string]Override

// NameLookup is the read side of the name cache
type NameLookup interface {
	Get(id string) (namecache.Entry, bool)
}

// Build turns classified segments into a trail. It performs no I/O and its
// result only depends on its arguments and the current cache contents.
func Build(segments []segment.Segment, names NameLookup, overrides Overrides) Trail {
	trail := make(Trail, 0, len(segments)+1)
	trail = append(trail, Crumb{Name: HomeName, Target: HomeTarget})

	raw := make([]string, 0, len(segments))
	for _, seg := range segments {
		raw = append(raw, seg.Raw)

		crumb := Crumb{
			Name:   displayName(seg, names),
			Target: "/" + strings.Join(raw, "/"),
		}
		if override, ok := overrides[seg.Raw]; ok {
			crumb = override.apply(crumb)
		}
		trail = append(trail, crumb)
	}
	return trail
}

func displayName(seg segment.Segment, names NameLookup) string {
	if !seg.IsIdentifier() {
		return seg.Label
	}
	if names == nil {
		return seg.ID
	}

	entry, ok := names.Get(seg.ID)
	if !ok {
		return seg.ID
	}
	switch entry.State {
	case namecache.Resolved:
		return entry.Name
	case namecache.Failed:
		return entry.Message
	default:
		return LoadingName
	}
}

func (o Override) apply(crumb Crumb) Crumb {
	if o.Name != nil && *o.Name != "" {
		crumb.Name = *o.Name
	}
	if o.Target != nil && *o.Target != "" {
		crumb.Target = *o.Target
	}
	if o.Style != nil {
		crumb.Style = *o.Style
	}
	return crumb
}
