package runner

import "os"

var osExit = os.Exit
