package buildinfo

import "testing"

func TestString(t *testing.T) {
    defer func(v, c, b string) { Version, Commit, BuiltAt = v, c, b }(Version, Commit, BuiltAt)
    Version, Commit, BuiltAt = "1.2.0", "abc123", "2024-09-05"
    if got := String(); got != "fleetroute 1.2.0 (abc123) built 2024-09-05" { t.Fatalf("String() = %q", got) }
    Commit, BuiltAt = "", ""
    if got := String(); got != "fleetroute 1.2.0" { t.Fatalf("String() = %q", got) }
    if Info()["version"] != "1.2.0" { t.Fatal("Info version") }
}
