// Package version holds build identification injected at link time.
package version

var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
