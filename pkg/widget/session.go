package widget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionSuffixLength = 9

// newSessionID returns session_<unix-millis>_<9 random chars>.
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionSuffixLength]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}
