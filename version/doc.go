// Package version exposes the build version of the genqueue binaries.
//
// Set the variables at build time:
//
//	go build -ldflags "-X github.com/ncobase/genqueue/version.Version=v1.2.0 \
//	    -X github.com/ncobase/genqueue/version.Branch=main"
package version
