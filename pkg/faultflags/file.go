package faultflags

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/runtime"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// DefaultFlagDir is where flag files are written inside the target
const DefaultFlagDir = "/tmp/chaos-faults"

// FileStore writes one JSON file per dependency inside the target through runtime exec.
// Expiry is enforced in the target by a background removal.
type FileStore struct {
	rt  runtime.Runtime
	dir string
}

// NewFileStore returns a store writing under dir, DefaultFlagDir when empty
func NewFileStore(rt runtime.Runtime, dir string) *FileStore {
	if dir == "" {
		dir = DefaultFlagDir
	}
	return &FileStore{rt: rt, dir: strings.TrimRight(dir, "/")}
}

// Path returns the flag file of dependency inside the target
func (s *FileStore) Path(dependency string) string {
	return s.dir + "/" + dependency + ".json"
}

func (s *FileStore) Set(ctx context.Context, target types.ServiceTarget, flag Flag, ttl time.Duration) error {
	value, err := flag.Encode()
	if err != nil {
		return err
	}
	path := quote(s.Path(flag.Dependency))
	script := fmt.Sprintf("mkdir -p %s && printf '%%s' %s > %s", quote(s.dir), quote(value), path)
	if ttl > 0 {
		script += fmt.Sprintf(" && (nohup sh -c 'sleep %d; rm -f '%s >/dev/null 2>&1 &)", int(ttl.Seconds()+0.5), path)
	}
	if _, err := s.rt.Exec(ctx, target.Handle, []string{"sh", "-c", script}); err != nil {
		return errors.Wrapf(err, "unable to write fault flag in %v", target.Name)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context, target types.ServiceTarget, dependency string) error {
	if _, err := s.rt.Exec(ctx, target.Handle, []string{"rm", "-f", s.Path(dependency)}); err != nil {
		return errors.Wrapf(err, "unable to remove fault flag in %v", target.Name)
	}
	return nil
}

// quote single-quotes s for sh
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
