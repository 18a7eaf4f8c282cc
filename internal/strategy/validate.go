// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"fmt"
	"strings"
)

// LengthFloor is the minimum candidate/original length ratio a rewrite
// may produce. Anything below it is treated as destructive and rejected.
const LengthFloor = 0.70

// criticalCommands must survive every rewrite. A candidate that drops
// one is rejected regardless of what else it improved.
var criticalCommands = []string{
	`\documentclass`,
	`\begin{document}`,
	`\end{document}`,
}

// Validate is the safety gate every candidate rewrite must pass before
// acceptance. A failed check discards the candidate unconditionally —
// this is an invariant of the optimizer, not a heuristic.
func Validate(original, candidate string) (ok bool, failures []string) {
	if strings.Count(candidate, `\begin{`) != strings.Count(candidate, `\end{`) &&
		strings.Count(original, `\begin{`) == strings.Count(original, `\end{`) {
		failures = append(failures, "begin/end balance broken")
	}
	if strings.Count(candidate, "{") != strings.Count(candidate, "}") &&
		strings.Count(original, "{") == strings.Count(original, "}") {
		failures = append(failures, "brace balance broken")
	}
	for _, cmd := range criticalCommands {
		if strings.Contains(original, cmd) && !strings.Contains(candidate, cmd) {
			failures = append(failures, fmt.Sprintf("critical command %s removed", cmd))
		}
	}
	if float64(len(candidate)) < float64(len(original))*LengthFloor {
		failures = append(failures, fmt.Sprintf(
			"candidate shrank below %.0f%% of original", LengthFloor*100))
	}
	return len(failures) == 0, failures
}
