package help

import (
	"flag"
	"fmt"
	"io"
)

// AppInfo describes a binary.
type AppInfo struct {
	Name        string
	Description string
	Version     string
}

// Usage returns a flag.Usage function printing the flags of fs followed by
// the environment overrides of cfg.
func Usage(w io.Writer, app AppInfo, fs *flag.FlagSet, prefix string, cfg any) func() {
	return func() {
		fmt.Fprintf(w, "%s %s\n\n%s\n\n", app.Name, app.Version, app.Description)
		fmt.Fprintf(w, "Usage: %s [OPTIONS]\n\nOptions:\n", app.Name)
		fs.SetOutput(w)
		fs.PrintDefaults()

		fmt.Fprintf(w, "\nConfiguration is read from -config, then config.yaml in ., ./configs and\n")
		fmt.Fprintf(w, "/etc/credguard. A .env file in the working directory is loaded first.\n")
		fmt.Fprintf(w, "\nEnvironment variables:\n")
		fmt.Fprint(w, FormatEnvVars(EnvVars(prefix, cfg)))
	}
}
