package tracker

import (
	"fmt"
	"time"

	"github.com/kazz187/timeguild/internal/session"
)

const dateLayout = "2006-01-02"

// FormatElapsed renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func formatPreviousSession(s *session.Session) string {
	return fmt.Sprintf("worked on %s for %s on %s",
		s.Project,
		FormatElapsed(time.Duration(s.Duration)*time.Millisecond),
		s.StartTime.Local().Format(dateLayout),
	)
}
