package toolbox

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForCtrlC blocks until the process receives an interrupt or a
// SIGTERM.
func WaitForCtrlC() {
	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(terminate)
	<-terminate
}
