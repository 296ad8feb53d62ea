// Package targets holds the process-wide table of services and datastores under test.
// The table is populated and resolved once at startup and only read afterwards.
package targets

import (
	"context"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/runtime"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// Registry is the read-only table of registered targets
type Registry struct {
	services   []types.ServiceTarget
	datastores []types.DatastoreTarget
	critical   map[string]bool
}

// NewRegistry builds an unresolved registry, order of services is kept for reporting
func NewRegistry(services []types.ServiceTarget, datastores []types.DatastoreTarget, critical []string) *Registry {
	r := &Registry{
		services:   append([]types.ServiceTarget(nil), services...),
		datastores: append([]types.DatastoreTarget(nil), datastores...),
		critical:   map[string]bool{},
	}
	for _, name := range critical {
		r.critical[name] = true
	}
	return r
}

// Resolve derives the runtime handle of every target once.
// Any failure aborts, a target is never silently skipped.
func (r *Registry) Resolve(ctx context.Context, rt runtime.Runtime) error {
	for i := range r.services {
		ref := r.services[i].RuntimeRef
		if ref == "" {
			ref = r.services[i].Name
		}
		handle, err := rt.Resolve(ctx, ref)
		if err != nil {
			return cerrors.TargetResolution{Target: r.services[i].Name, Reason: err.Error()}
		}
		r.services[i].Handle = handle
		log.Infof("[PreReq]: Resolved %v service to handle %v", r.services[i].Name, handle)
	}
	for i := range r.datastores {
		ref := r.datastores[i].RuntimeRef
		if ref == "" {
			ref = r.datastores[i].Name
		}
		handle, err := rt.Resolve(ctx, ref)
		if err != nil {
			return cerrors.TargetResolution{Target: r.datastores[i].Name, Reason: err.Error()}
		}
		r.datastores[i].Handle = handle
		log.Infof("[PreReq]: Resolved %v datastore to handle %v", r.datastores[i].Name, handle)
	}
	return nil
}

// Services returns a copy of the registered services
func (r *Registry) Services() []types.ServiceTarget {
	return append([]types.ServiceTarget(nil), r.services...)
}

// Datastores returns a copy of the registered datastores
func (r *Registry) Datastores() []types.DatastoreTarget {
	return append([]types.DatastoreTarget(nil), r.datastores...)
}

// Service looks a service up by name
func (r *Registry) Service(name string) (types.ServiceTarget, bool) {
	for _, s := range r.services {
		if s.Name == name {
			return s, true
		}
	}
	return types.ServiceTarget{}, false
}

// Datastore looks a datastore up by name
func (r *Registry) Datastore(name string) (types.DatastoreTarget, bool) {
	for _, d := range r.datastores {
		if d.Name == name {
			return d, true
		}
	}
	return types.DatastoreTarget{}, false
}

// IsCritical reports whether an outage of the service is user facing
func (r *Registry) IsCritical(name string) bool {
	return r.critical[name]
}

// Expand turns an impact radius into service targets.
// The "all" sentinel expands to every registered service, duplicates are dropped
// and unknown names are reported back to the caller.
func (r *Registry) Expand(radius []string) ([]types.ServiceTarget, []string) {
	var (
		out     []types.ServiceTarget
		unknown []string
	)
	seen := map[string]bool{}
	add := func(s types.ServiceTarget) {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	for _, name := range radius {
		if name == types.AllServices {
			for _, s := range r.services {
				add(s)
			}
			continue
		}
		s, ok := r.Service(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		add(s)
	}
	return out, unknown
}
