//go:build windows

package supervisor

func ignoreBrokenPipe() {}
