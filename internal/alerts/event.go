package alerts

// Category identifies the signal source an event came from. Rules only see
// events of their own category.
type Category string

const (
	CategoryRisk   Category = "risk"
	CategoryVitals Category = "vitals"
	CategoryLabs   Category = "labs"
	CategoryManual Category = "manual"
)

// Event is one signal record pulled by a poller, keyed by the patient it
// pertains to. Fields carry the raw column values of the originating row.
type Event struct {
	SubjectID string
	Category  Category
	Fields    map[string]any
}

func (e Event) floatField(key string, fallback float64) float64 {
	val, ok := e.Fields[key]
	if !ok || val == nil {
		return fallback
	}
	f, err := toFloat(val)
	if err != nil {
		return fallback
	}
	return f
}

func (e Event) boolField(key string) bool {
	val, ok := e.Fields[key]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	return ok && b
}

func (e Event) stringField(key string) string {
	val, ok := e.Fields[key]
	if !ok || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}
