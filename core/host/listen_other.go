//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package host

import "net"

// listenConfig uses the platform defaults; socket options are not tuned here
func listenConfig(bool) *net.ListenConfig {
	return &net.ListenConfig{}
}
