package worker

import "strings"

// isApproval reports whether a review response approves the work under
// review: any response beginning with "LGTM", case- and
// whitespace-insensitive.
func isApproval(output string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(output)), "LGTM")
}
