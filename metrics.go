package toolloop

// Metrics is a map that can hold any kind of usage metric a Gateway reports
// for a single converse call.
type Metrics map[string]any

const (
	// UsageMetricInputTokens is a metric key representing the number of tokens in the conversation sent to the model.
	// The value associated with this key is expected to be of type int.
	UsageMetricInputTokens = "input_tokens"

	// UsageMetricGenerationTokens is a metric key representing the number of tokens generated by the model.
	// The value associated with this key is expected to be of type int.
	UsageMetricGenerationTokens = "gen_tokens"
)

// InputTokens returns the number of input tokens, if present.
func InputTokens(m Metrics) (int, bool) {
	return GetMetric[int](m, UsageMetricInputTokens)
}

// OutputTokens returns the number of generated tokens, if present.
func OutputTokens(m Metrics) (int, bool) {
	return GetMetric[int](m, UsageMetricGenerationTokens)
}

// GetMetric retrieves a metric of type T. The second return value is false if the
// key is absent or holds a value of another type.
func GetMetric[T any](m Metrics, key string) (T, bool) {
	var metric T
	metricVal, ok := m[key]
	if !ok {
		return metric, false
	}
	metric, ok = metricVal.(T)
	return metric, ok
}

// AddUsage adds the token counts of other into m, allocating m if needed.
// Other metrics, such as the sources of a grounded answer, are copied over and
// replace the value already in m.
func AddUsage(m Metrics, other Metrics) Metrics {
	if m == nil {
		m = Metrics{}
	}
	for key, v := range other {
		switch key {
		case UsageMetricInputTokens, UsageMetricGenerationTokens:
			n, ok := v.(int)
			if !ok {
				continue
			}
			cur, _ := GetMetric[int](m, key)
			m[key] = cur + n
		default:
			m[key] = v
		}
	}
	return m
}
