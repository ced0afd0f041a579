// Package buildinfo carries version stamps set at link time with
// -ldflags "-X fleetroute/internal/buildinfo.Version=...".
package buildinfo

import "fmt"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
}

// String renders the stamps for --version output.
func String() string {
    s := "fleetroute " + Version
    if Commit != "" { s += fmt.Sprintf(" (%s)", Commit) }
    if BuiltAt != "" { s += " built " + BuiltAt }
    return s
}
