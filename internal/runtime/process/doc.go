// Package process spawns and tracks the single supervised child.
//
// The child's three standard streams are connected through os.Pipe pairs
// owned by the Handle, so reads from stdout and stderr are independent of
// reaping the process: the exit is observed as soon as the kernel reports it,
// and callers drain the output pipes to EOF on their own schedule.
//
// Process-group termination is only guaranteed on Unix, where the child is
// started with Setpgid and signals go to the whole group. On Windows the
// handle offers best-effort semantics: Terminate degrades to an interrupt
// attempt and Kill terminates only the top-level process.
package process
