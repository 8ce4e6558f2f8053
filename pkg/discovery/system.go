package discovery

import (
	"context"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

const probeTimeout = 2 * time.Second

type systemLister struct{}

// NewSystemLister enumerates real OS processes through gopsutil
func NewSystemLister() Lister {
	return systemLister{}
}

func (systemLister) List(ctx context.Context) ([]Candidate, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(procs))
	for _, p := range procs {
		candidates = append(candidates, &systemProcess{proc: p})
	}
	return candidates, nil
}

type systemProcess struct {
	proc *gopsprocess.Process
}

func (s *systemProcess) PID() int { return int(s.proc.Pid) }

func (s *systemProcess) Name(ctx context.Context) (string, error) {
	return s.proc.NameWithContext(ctx)
}

func (s *systemProcess) Exe(ctx context.Context) (string, error) {
	return s.proc.ExeWithContext(ctx)
}

func (s *systemProcess) Running() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	running, err := s.proc.IsRunningWithContext(ctx)
	return err == nil && running
}

func (s *systemProcess) Kill() error {
	if !s.Running() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return s.proc.KillWithContext(ctx)
}
