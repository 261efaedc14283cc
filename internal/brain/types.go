package brain

// Dataset represents a dataset entry from the platform catalog
type Dataset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Subcategory Category `json:"subcategory"`
	Region      string   `json:"region"`
	Delay       int      `json:"delay"`
	Universe    string   `json:"universe"`
	Coverage    float64  `json:"coverage"`
	UserCount   int      `json:"userCount"`
	AlphaCount  int      `json:"alphaCount"`
	FieldCount  int      `json:"fieldCount"`
}

// Category represents a dataset category or subcategory
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DataField represents a field available inside a dataset
type DataField struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Coverage    float64 `json:"coverage"`
	UserCount   int     `json:"userCount"`
	AlphaCount  int     `json:"alphaCount"`
}

// Operator represents an expression operator supported by the platform
type Operator struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Definition  string `json:"definition"`
	Description string `json:"description"`
}

// datasetsResponse is the paginated /data-sets payload
type datasetsResponse struct {
	Count   int       `json:"count"`
	Results []Dataset `json:"results"`
}

// dataFieldsResponse is the paginated /data-fields payload
type dataFieldsResponse struct {
	Count   int         `json:"count"`
	Results []DataField `json:"results"`
}

// simulationRequest is the alpha simulation submission payload
type simulationRequest struct {
	Type     string             `json:"type"`
	Settings simulationSettings `json:"settings"`
	Regular  string             `json:"regular"`
}

// simulationSettings mirrors the platform's REGULAR alpha settings block
type simulationSettings struct {
	InstrumentType string  `json:"instrumentType"`
	Region         string  `json:"region"`
	Universe       string  `json:"universe"`
	Delay          int     `json:"delay"`
	Decay          int     `json:"decay"`
	Neutralization string  `json:"neutralization"`
	Truncation     float64 `json:"truncation"`
	Pasteurization string  `json:"pasteurization"`
	UnitHandling   string  `json:"unitHandling"`
	NanHandling    string  `json:"nanHandling"`
	Language       string  `json:"language"`
	Visualization  bool    `json:"visualization"`
}

// simulationStatus is the polled simulation progress payload
type simulationStatus struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Alpha    string  `json:"alpha"`
	Message  string  `json:"message"`
}

// AlphaCheck represents the platform's evaluation of a simulated alpha
type AlphaCheck struct {
	Sharpe float64
	Passed bool
	Checks []CheckItem
}

// CheckItem is one entry of the in-sample check list
type CheckItem struct {
	Name   string  `json:"name"`
	Result string  `json:"result"`
	Limit  float64 `json:"limit"`
	Value  float64 `json:"value"`
}

// alphaCheckResponse is the raw /alphas/{id}/check payload
type alphaCheckResponse struct {
	IS struct {
		Checks []CheckItem `json:"checks"`
	} `json:"is"`
}
