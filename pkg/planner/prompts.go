package planner

// freeformPlannerPrompt asks the planner LLM for a flat node list; %s
// holds the query, %s holds an optional neighbor-hint block (may be
// empty).
const freeformPlannerPrompt = `SYSTEM: PLAN
Return ONLY a JSON object: {"nodes": [{"name":"...", "tmpl":"...", "deps":["..."], "role":"backbone|adjunct", "prompt":"...", "contract": {"format":{...},"tests":[{"kind":"...","arg":"..."}]}}]}.
QUERY: %s
%s`

// cqapMetaPrompt asks the planner LLM for a CQAP slot map; %s holds the
// query.
const cqapMetaPrompt = `SYSTEM: CQAP
Return ONLY a JSON object with string-valued keys among: goal, obstacles, facts,
precision, toneanalysis, insights, structuralrelationships, boundaryanalysis,
embeddedassumptions, knowledgegaps, factreflectionseparation, uncertainty,
responsestrategy, rationale.
QUERY: %s`
