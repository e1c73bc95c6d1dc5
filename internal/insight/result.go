package insight

import (
	"groupscholar-workforce-estimator/internal/gender"
	"groupscholar-workforce-estimator/internal/normalize"
)

const (
	ViewEssential   = "essential"
	ViewGender      = "gender"
	ViewEngineering = "engineering"
	ViewCustom      = "custom"
)

// Result is a fully computed table. LabelColumn names the category axis, SeriesColumn the
// grouping within a label (empty when rows have no series) and ValueColumn the plotted
// value, with ValueLabel its axis title.
type Result struct {
	RequestID    string           `json:"request_id"`
	View         string           `json:"view"`
	Applied      Selection        `json:"applied"`
	LabelColumn  string           `json:"label_column"`
	SeriesColumn string           `json:"series_column,omitempty"`
	ValueColumn  string           `json:"value_column"`
	ValueLabel   string           `json:"value_label"`
	Reference    *float64         `json:"reference,omitempty"`
	Rows         []normalize.Row  `json:"rows"`
	Metrics      []gender.Metrics `json:"metrics,omitempty"`
	Empty        bool             `json:"empty"`
	Message      string           `json:"message,omitempty"`
}

// Selection records the selection a result was computed for, after defaults and fallbacks.
type Selection struct {
	ServiceType   string   `json:"service_type,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Sort          string   `json:"sort,omitempty"`
	Occupations   []string `json:"occupations,omitempty"`
	ChartMode     string   `json:"chart_mode,omitempty"`
	EngineerTypes []string `json:"engineer_types,omitempty"`
	Category      string   `json:"category,omitempty"`
	Analysis      string   `json:"analysis,omitempty"`
}

func emptyResult(base Result, message string) Result {
	base.Empty = true
	base.Message = message
	base.Rows = []normalize.Row{}
	return base
}
