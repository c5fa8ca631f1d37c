package audit

import (
	"fmt"

	"github.com/darmiel/linkgate/internal/buildinfo"
)

// CreateUserAgent builds the User-Agent sent to upstream platforms so their
// request logs can be correlated with ours.
func CreateUserAgent(correlationID, platform, operation string) string {
	return fmt.Sprintf("LinkGate/%s (correlation_id=%s; platform=%s; operation=%s)",
		buildinfo.Version, correlationID, platform, operation)
}
