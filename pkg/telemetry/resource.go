package telemetry

import (
	"context"
	"net"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// buildResource describes this process: service name and version, the host
// address and any OTEL_RESOURCE_ATTRIBUTES.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if ip := getHostIP(); ip != "" {
		attrs = append(attrs, semconv.HostName(ip))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// getHostIP resolves the hostname, preferring a non-loopback IPv4 address.
func getHostIP() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	addrs, err := net.LookupIP(hostname)
	if err == nil {
		if ip := pickIP(addrs); ip != "" {
			return ip
		}
	}
	return getFirstNonLoopbackIP()
}

func pickIP(addrs []net.IP) string {
	var fallback string
	for _, addr := range addrs {
		if addr.IsLoopback() {
			continue
		}
		if v4 := addr.To4(); v4 != nil {
			return v4.String()
		}
		if fallback == "" {
			fallback = addr.String()
		}
	}
	return fallback
}

// getFirstNonLoopbackIP scans the interfaces that are up for an IPv4 address.
func getFirstNonLoopbackIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if n, ok := addr.(*net.IPNet); ok && !n.IP.IsLoopback() {
				if v4 := n.IP.To4(); v4 != nil {
					return v4.String()
				}
			}
		}
	}
	return ""
}
