// ABOUTME: Version and product identification
// ABOUTME: Reported in logs, Opus vendor tags and the monitor handshake
package version

const (
	Version      = "0.3.0"
	Product      = "offline-render"
	Manufacturer = "Sendspin"
)

// String returns the product name and version
func String() string {
	return Product + " " + Version
}
