package metrics

// Namespace prefixes every collector exported by the service.
const Namespace = "procurement"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
