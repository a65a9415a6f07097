// Package buildinfo holds build-time metadata kept apart from user configuration
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not set
const UnknownValue = "unknown"

// Context contains metadata injected at link time. It is not configurable
// and never written to the config file.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates build metadata. Empty values report UnknownValue.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

func orUnknown(c *Context, field func(*Context) string) string {
	if c == nil {
		return UnknownValue
	}
	if v := field(c); v != "" {
		return v
	}
	return UnknownValue
}

// Version returns the release tag the binary was built from
func (c *Context) Version() string {
	return orUnknown(c, func(c *Context) string { return c.version })
}

// BuildDate returns the time the binary was built
func (c *Context) BuildDate() string {
	return orUnknown(c, func(c *Context) string { return c.buildDate })
}

// Commit returns the source revision
func (c *Context) Commit() string {
	return orUnknown(c, func(c *Context) string { return c.commit })
}

func (c *Context) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", c.Version(), c.Commit(), c.BuildDate())
}
