package boot

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/voicescribe/backend/libs/golog"
)

// WaitForTermination blocks until an INT or TERM signal arrives.
func WaitForTermination() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	golog.Infof("Quitting due to signal %s", sig.String())
}
