package scene

import (
	"errors"
	"slices"
	"sort"

	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/layout"
)

// Target is the part of the compositor a layout is applied to.
type Target interface {
	AttachChannel(id string, zorder int) (*compositor.ChannelHandle, error)
	DetachChannel(id string) error
	Channels() []*compositor.ChannelHandle
	UpdateChannel(id string, cfg layout.Config) ([]string, error)
	SetZOrder(id string, zorder int) error
	SetBackgroundColor(rgb uint32)
}

// ApplyResult lists what Apply changed, each sorted by channel id.
type ApplyResult struct {
	Attached []string `json:"attached"`
	Detached []string `json:"detached"`
	Updated  []string `json:"updated"`
}

// Apply makes the channels of target match l: channels missing from l are
// detached, new ones attached, the rest updated in place. The output
// geometry is not touched.
func Apply(target Target, l *Layout) (ApplyResult, error) {
	var res ApplyResult

	configs := make(map[string]layout.Config, len(l.Channels))
	for id, spec := range l.Channels {
		cfg, err := spec.Config()
		if err != nil {
			return res, NewError(ErrCodeInvalidParams, "channel "+id, err)
		}
		configs[id] = cfg
	}

	target.SetBackgroundColor(l.Output.Background)

	var errs []error
	existing := make(map[string]bool)
	for _, h := range target.Channels() {
		id := h.ID()
		existing[id] = true
		if _, keep := l.Channels[id]; keep {
			continue
		}
		if err := target.DetachChannel(id); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Detached = append(res.Detached, id)
	}

	ids := make([]string, 0, len(l.Channels))
	for id := range l.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		spec := l.Channels[id]
		if !existing[id] {
			if _, err := target.AttachChannel(id, spec.ZOrder); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Attached = append(res.Attached, id)
		} else if err := target.SetZOrder(id, spec.ZOrder); err != nil {
			errs = append(errs, err)
			continue
		}

		changed, err := target.UpdateChannel(id, configs[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if existing[id] && len(changed) > 0 {
			res.Updated = append(res.Updated, id)
		}
	}

	slices.Sort(res.Detached)
	if err := errors.Join(errs...); err != nil {
		return res, NewError(ErrCodeApplyError, "layout partially applied", err)
	}
	return res, nil
}
