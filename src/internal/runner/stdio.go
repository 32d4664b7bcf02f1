package runner

import "os"

func stdin() *os.File  { return os.Stdin }
func stdout() *os.File { return os.Stdout }
func stderr() *os.File { return os.Stderr }
