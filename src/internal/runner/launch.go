package runner

import "os/exec"

// launchFunc spawns pythonExe with argv/env and waits for it, returning its
// exit code. This is the path used whenever an envelope.Collector needs to
// observe RunExit — true process replacement (see ReplaceProcess) makes
// that observation impossible by definition, so the collector-driven Run
// always spawns and waits, on every platform. ReplaceProcess remains
// available for a non-envelope, direct pass-through invocation.
//
// Exposed as a package-level var so tests can substitute a fake process
// launcher without a real Python interpreter on PATH.
var launchFunc = launch

func launch(pythonExe string, argv, env []string) (int, error) {
	cmd := exec.Command(pythonExe, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = stdin()
	cmd.Stdout = stdout()
	cmd.Stderr = stderr()

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
