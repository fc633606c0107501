package router

import (
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// AssignStage ranks candidates for the steps of one stage against the
// current agent state and returns new steps; the input is not modified.
//
// Existing candidates break ranking ties, so a stage assigned at plan time
// keeps its order while agent state is unchanged. Agents in Error are
// dropped when a healthy agent serves the step. A step's preferred agent
// leads when still eligible. Every other step gets a primary not already
// primary for another step where possible.
func AssignStage(mgr *manager.Manager, steps []models.Step) []models.Step {
	out := make([]models.Step, len(steps))
	used := make(map[string]bool, len(steps))
	for i, s := range steps {
		s.Candidates = withoutFailing(mgr, mgr.Rank(s.Capability, s.Candidates))
		if s.Preferred != "" && indexOf(s.Candidates, s.Preferred) >= 0 {
			used[s.Preferred] = true
		}
		out[i] = s
	}

	for i := range out {
		cands := out[i].Candidates
		lead := -1
		if out[i].Preferred != "" {
			lead = indexOf(cands, out[i].Preferred)
		}
		if lead < 0 {
			for j, id := range cands {
				if !used[id] {
					lead = j
					break
				}
			}
		}
		if lead > 0 {
			cands = append([]string{cands[lead]}, append(cands[:lead:lead], cands[lead+1:]...)...)
		}
		if len(cands) > 0 {
			used[cands[0]] = true
		}
		out[i].Candidates = cands
	}
	return out
}

// withoutFailing removes agents in Error unless every agent is failing.
func withoutFailing(mgr *manager.Manager, ids []string) []string {
	healthy := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, err := mgr.Status(id); err == nil && s != models.AgentStatusError {
			healthy = append(healthy, id)
		}
	}
	if len(healthy) == 0 {
		return ids
	}
	return healthy
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
