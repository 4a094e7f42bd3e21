// Package version reports the recflow build.
//
// Values can be stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/recflow/version.Version=1.2.0"
//
// Otherwise the module version is read from the build info of the binary
// that imports recflow.
package version
