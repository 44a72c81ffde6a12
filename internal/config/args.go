package config

import "strings"

const logLevelFlag = "--log-level"

// ParseArgs splits the wrapper's own flags from the tokens forwarded to the
// child. Only --log-level is recognised; it consumes exactly one following
// token. Every other token is kept in order, except empty or whitespace-only
// ones.
func ParseArgs(args []string) (Options, error) {
	opts := Options{LogLevel: DefaultLevel}
	child := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		if args[i] != logLevelFlag {
			child = append(child, args[i])
			continue
		}
		if i+1 >= len(args) {
			return Options{}, &Error{Field: "log-level", Reason: "Missing log level value for --log-level option"}
		}
		lvl, err := ParseLevel(args[i+1])
		if err != nil {
			return Options{}, err
		}
		opts.LogLevel = lvl
		i++
	}

	opts.ChildArgs = make([]string, 0, len(child))
	for _, arg := range child {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		opts.ChildArgs = append(opts.ChildArgs, arg)
	}
	return opts, nil
}
