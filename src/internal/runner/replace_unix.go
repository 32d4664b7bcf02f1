//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// ReplaceProcess hands off to the interpreter via process replacement
// (spec.md §4.6 step 4): the runner's process image is replaced, so the
// current process is not the parent of the child. It never returns on
// success; a returned error means exec itself failed. No command in this
// module calls it: run and x spawn and wait so they can emit RunExit.
func ReplaceProcess(pythonExe string, argv, env []string) error {
	resolved, err := exec.LookPath(pythonExe)
	if err != nil {
		resolved = pythonExe
	}
	return syscall.Exec(resolved, argv, env)
}
