package orchestrator

const claimsExtractPrompt = "SYSTEM: EXTRACT_CLAIMS\nReturn ONLY JSON {\"claims\": [{\"subject\":\"\",\"predicate\":\"\",\"object\":\"\",\"polarity\":true,\"confidence\":0.5}]}.\nExtract claims from:\n%s"
const cohesionPrompt = "Ensure cohesion for query %s:\n%s\nReturn ONLY JSON {\"recommendations\": [...], \"revised\": \"...\"}."
const cohesionApplyPrompt = "Apply cohesion recommendations:\n%s\n---\n%s"
const contradictionResolutionPrompt = "Resolve this apparent contradiction about %q.\nSide A:\n%s\nSide B:\n%s"
const selfModelUpdatePrompt = "Update self model:\n%s"
