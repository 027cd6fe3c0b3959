package analysis

// FieldKind is the input widget a field maps to.
type FieldKind string

const (
	FieldColumn  FieldKind = "column"  // one numeric column
	FieldColumns FieldKind = "columns" // one or more numeric columns
	FieldNumber  FieldKind = "number"
	FieldChoice  FieldKind = "choice"
)

// Choice is one option of a choice field.
type Choice struct {
	Value string
	Label string
}

// Field describes one form input of an analysis.
type Field struct {
	Key      string
	Label    string
	Help     string
	Kind     FieldKind
	Step     int
	Required bool

	// Default is used for number and choice fields.
	Default string
	// DefaultCount is how many numeric columns a column field picks on reset.
	DefaultCount int

	Min     float64
	Max     float64
	Integer bool
	Choices []Choice

	// Excludes lists column fields whose selections may not appear in this one.
	Excludes []string
}

// IsColumn reports whether the field selects dataset columns.
func (f Field) IsColumn() bool {
	return f.Kind == FieldColumn || f.Kind == FieldColumns
}

// HasChoice reports whether v is an allowed value of a choice field.
func (f Field) HasChoice(v string) bool {
	for _, c := range f.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

var confidenceChoices = []Choice{
	{Value: "0.90", Label: "90%"},
	{Value: "0.95", Label: "95%"},
	{Value: "0.99", Label: "99%"},
}

func confidenceField(step int) Field {
	return Field{
		Key:      "confidence_level",
		Label:    "Confidence level",
		Kind:     FieldChoice,
		Step:     step,
		Required: true,
		Default:  "0.95",
		Choices:  confidenceChoices,
	}
}
