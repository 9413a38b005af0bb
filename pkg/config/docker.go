package config

import (
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites loopback datasource hosts to host.docker.internal
// when the canvas runs in a container, so "localhost" still reaches the user's database.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return resolveLoopback(host)
}

func resolveLoopback(host string) string {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
