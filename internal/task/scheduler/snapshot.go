package scheduler

import (
	"fmt"
	"sort"

	"pawbot/internal/task/engine"
)

type engineSnapshotter interface {
	Snapshot() engine.Snapshot
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:  s.c != nil,
		Timezone: s.loc.String(),
		Jobs:     make([]JobInfo, 0, len(s.jobs)),
	}
	for _, d := range s.jobs {
		it := JobInfo{
			ID:      d.id,
			Spec:    d.spec,
			At:      fmt.Sprintf("%02d:%02d", d.hour, d.minute),
			Timeout: d.timeout,
			Next:    s.nextLocked(d),
			Busy:    d.state.Busy(),
		}
		if s.c != nil && d.entryID != 0 {
			it.Prev = s.c.Entry(d.entryID).Prev
		}
		snap.Jobs = append(snap.Jobs, it)
	}
	exec := s.exec
	s.mu.Unlock()

	sort.Slice(snap.Jobs, func(i, j int) bool {
		if !snap.Jobs[i].Next.Equal(snap.Jobs[j].Next) {
			return snap.Jobs[i].Next.Before(snap.Jobs[j].Next)
		}
		return snap.Jobs[i].ID < snap.Jobs[j].ID
	})

	if es, ok := exec.(engineSnapshotter); ok {
		e := es.Snapshot()
		snap.Engine = &e
	}
	return snap
}
