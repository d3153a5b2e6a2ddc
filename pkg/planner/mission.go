package planner

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// MissionTactic is one tactic within a mission strategy stage.
type MissionTactic struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Dependencies     []string `json:"dependencies"`
	ExpectedArtifact string   `json:"expected_artifact"`
}

// MissionStage is one "Strategy" entry.
type MissionStage struct {
	Objective string            `json:"objective"`
	Queries   map[string]string `json:"queries"`
	Tactics   []MissionTactic   `json:"tactics"`
}

// Mission is the normalized mission plan shape.
type Mission struct {
	QueryContext string         `json:"query_context"`
	Strategy     []MissionStage `json:"strategy"`
}

// ParseMission tolerantly decodes a raw mission JSON object (any key
// casing, missing fields defaulted) into the canonical Mission shape by
// lowercasing the keys of each decoded map and reading the known fields
// out of it.
func ParseMission(obj string) (Mission, bool) {
	var generic map[string]any
	if !bbutil.SafeJSONUnmarshal(obj, &generic) {
		return Mission{}, false
	}
	generic = lowerKeys(generic)

	var m Mission
	if qc, ok := generic["query_context"].(string); ok {
		m.QueryContext = qc
	}
	rawStages, _ := generic["strategy"].([]any)
	for i, rs := range rawStages {
		stageMap, ok := rs.(map[string]any)
		if !ok {
			continue
		}
		stageMap = lowerKeys(stageMap)
		m.Strategy = append(m.Strategy, parseStage(stageMap, i))
	}
	return m, true
}

func parseStage(stageMap map[string]any, idx int) MissionStage {
	stage := MissionStage{Objective: fmt.Sprintf("Stage %d", idx+1)}

	if obj, ok := stringAt(stageMap, "objective"); ok {
		stage.Objective = obj
	} else {
		for k, v := range stageMap {
			if strings.HasPrefix(k, "o") && len(k) <= 3 {
				if s, ok := v.(string); ok {
					stage.Objective = s
					break
				}
			}
		}
	}

	if queries, ok := stageMap["queries"].(map[string]any); ok {
		stage.Queries = map[string]string{}
		for k, v := range queries {
			if s, ok := v.(string); ok {
				stage.Queries[k] = s
			}
		}
	}

	if tactics, ok := stageMap["tactics"].([]any); ok {
		for j, t := range tactics {
			tMap, ok := t.(map[string]any)
			if !ok {
				continue
			}
			tMap = lowerKeys(tMap)
			stage.Tactics = append(stage.Tactics, parseTactic(tMap, j))
		}
	}
	return stage
}

func parseTactic(tMap map[string]any, idx int) MissionTactic {
	tactic := MissionTactic{Name: fmt.Sprintf("t%d", idx+1)}
	var canonical MissionTactic
	_ = mergo.Merge(&canonical, tactic, mergo.WithOverride)
	tactic = canonical

	for k, v := range tMap {
		switch k {
		case "dependencies":
			if deps, ok := v.([]any); ok {
				for _, d := range deps {
					if s, ok := d.(string); ok {
						tactic.Dependencies = append(tactic.Dependencies, s)
					}
				}
			}
		case "expected_artifact":
			if s, ok := v.(string); ok {
				tactic.ExpectedArtifact = s
			}
		default:
			if strings.HasPrefix(k, "t") && len(k) <= 3 {
				if s, ok := v.(string); ok {
					tactic.Name = k
					tactic.Description = s
				}
			}
		}
	}
	return tactic
}

func stringAt(m map[string]any, key string) (string, bool) {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// CompileMission builds a Plan from a normalized Mission: one
// objective/queries/tactic chain per strategy stage, followed by a
// final_synthesis backbone node depending on every objective.
func CompileMission(m Mission) bbtypes.Plan {
	var nodes []bbtypes.Node
	var objectiveNames []string

	for i, stage := range m.Strategy {
		stageNo := i + 1
		objName := fmt.Sprintf("o%d_objective", stageNo)
		objDeps := []string{}

		if len(stage.Queries) > 0 {
			qName := fmt.Sprintf("o%d_queries", stageNo)
			nodes = append(nodes, bbtypes.Node{
				Name:     qName,
				Tmpl:     "MISSION_QUERIES",
				Contract: MkContract(fmt.Sprintf("O%d: Queries", stageNo), 30),
				Role:     bbtypes.RoleAdjunct,
			})
			objDeps = append(objDeps, qName)
		}

		tacticNodeByKey := map[string]string{}      // tactic name -> node name
		tacticNodeByArtifact := map[string]string{} // expected_artifact -> node name
		for _, tac := range stage.Tactics {
			nodeName := fmt.Sprintf("o%d_%s", stageNo, tac.Name)
			tacticNodeByKey[tac.Name] = nodeName
			if tac.ExpectedArtifact != "" {
				tacticNodeByArtifact[tac.ExpectedArtifact] = nodeName
			}
		}
		for _, tac := range stage.Tactics {
			nodeName := tacticNodeByKey[tac.Name]
			var deps []string
			for _, d := range tac.Dependencies {
				if n, ok := tacticNodeByKey[d]; ok {
					deps = append(deps, n)
				} else if n, ok := tacticNodeByArtifact[d]; ok {
					deps = append(deps, n)
				} else {
					deps = append(deps, d)
				}
			}
			nodes = append(nodes, bbtypes.Node{
				Name:     nodeName,
				Tmpl:     "MISSION_TACTIC",
				Deps:     deps,
				Contract: MkContract(fmt.Sprintf("O%d: %s", stageNo, tac.Name), 0),
				Role:     bbtypes.RoleAdjunct,
			})
			objDeps = append(objDeps, nodeName)
		}

		nodes = append(nodes, bbtypes.Node{
			Name:     objName,
			Tmpl:     "MISSION_OBJECTIVE",
			Deps:     objDeps,
			Contract: MkContract(fmt.Sprintf("O%d: %s", stageNo, stage.Objective), 80),
			Role:     bbtypes.RoleBackbone,
		})
		objectiveNames = append(objectiveNames, objName)
	}

	if len(nodes) == 0 {
		return bbtypes.Plan{}
	}

	nodes = append(nodes, bbtypes.Node{
		Name:     "final_synthesis",
		Tmpl:     "MISSION_SYNTHESIS",
		Deps:     objectiveNames,
		Contract: MkContract("Final Synthesis", 120),
		Role:     bbtypes.RoleBackbone,
	})

	return bbtypes.Plan{Nodes: ValidateAndRepair(nodes)}
}
