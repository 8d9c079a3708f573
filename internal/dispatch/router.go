package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// BindingSource looks up the bindings for an event. *store.BindingRepository
// satisfies it.
type BindingSource interface {
	ForEvent(event, handedness string) ([]*store.Binding, error)
}

// PluginSource resolves plugin names. *plugin.Manager satisfies it.
type PluginSource interface {
	Get(name string) (*plugin.Plugin, error)
}

// Runner executes a plugin request. *plugin.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// Result is the outcome of one binding.
type Result struct {
	Binding  *store.Binding
	Response *plugin.Response
	Err      error
}

// Router sends events to the plugins bound to them.
type Router struct {
	bindings BindingSource
	plugins  PluginSource
	runner   Runner
}

// NewRouter returns a router.
func NewRouter(bindings BindingSource, plugins PluginSource, runner Runner) *Router {
	return &Router{bindings: bindings, plugins: plugins, runner: runner}
}

// Route runs every binding for ev in order and returns one result per
// binding. Failures are reported in the results and logged; they never stop
// later bindings.
func (r *Router) Route(ctx context.Context, ev Event) ([]Result, error) {
	bindings, err := r.bindings.ForEvent(string(ev.Kind), string(ev.Handedness))
	if err != nil {
		return nil, fmt.Errorf("bindings for %s: %w", ev.Kind, err)
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	req, err := newRequest(ev)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(bindings))
	for _, b := range bindings {
		res := Result{Binding: b}
		res.Response, res.Err = r.run(ctx, b, *req)
		if res.Err == nil && !res.Response.Success {
			res.Err = fmt.Errorf("%s/%s: %s", b.PluginName, b.ActionName, res.Response.Error)
		}
		if res.Err != nil {
			log.Printf("binding %s (%s): %v", b.ID, ev.Kind, res.Err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Router) run(ctx context.Context, b *store.Binding, req plugin.Request) (*plugin.Response, error) {
	p, err := r.plugins.Get(b.PluginName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.PluginName, err)
	}
	if !p.Manifest.Accepts(req.Event) {
		return nil, fmt.Errorf("%s does not accept %s events", b.PluginName, req.Event)
	}
	req.Action = b.ActionName
	req.Config = b.Config
	return r.runner.Execute(ctx, p, &req)
}

func newRequest(ev Event) (*plugin.Request, error) {
	req := &plugin.Request{
		Event:      string(ev.Kind),
		Handedness: string(ev.Handedness),
	}
	var pose any
	switch {
	case ev.Pose != nil:
		pose = ev.Pose
	case ev.Gaze != nil:
		pose = ev.Gaze
	}
	if pose != nil {
		data, err := json.Marshal(pose)
		if err != nil {
			return nil, fmt.Errorf("marshal %s pose: %w", ev.Kind, err)
		}
		req.Pose = data
	}
	if ev.Saccade != nil {
		data, err := json.Marshal(ev.Saccade)
		if err != nil {
			return nil, fmt.Errorf("marshal saccade: %w", err)
		}
		req.Params = data
	}
	return req, nil
}
