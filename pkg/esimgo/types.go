package esimgo

// CataloguePage is one page of the bundle catalogue.
type CataloguePage struct {
	Bundles    []Bundle `json:"bundles"`
	PageCount  int      `json:"pageCount"`
	TotalCount int      `json:"totalCount"`
}

// Bundle is a purchasable bundle. Much of the interesting information lives
// in the bundle name, e.g. "ESIM_5GB_30D_US_V2" or "ESIM_ULP_7D_TR_V2":
// the structured fields are not always populated, so consumers fall back to
// parsing name tokens.
type Bundle struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Region      string   `json:"region,omitempty"` // free text, e.g. "North America"
	Countries   []string `json:"countries,omitempty"`
	// DataAmountMB is 0 both for "not populated" and for unlimited bundles;
	// disambiguation happens via the name tokens.
	DataAmountMB int `json:"dataAmount,omitempty"`
	// Duration is a string with a trailing unit, e.g. "30d".
	Duration  string  `json:"duration,omitempty"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency,omitempty"`
	Available bool    `json:"available"`
}

// OrderRequest purchases one or more bundles with immediate eSIM assignment.
type OrderRequest struct {
	Type   string      `json:"type"` // "transaction"
	Assign bool        `json:"assign"`
	Order  []OrderLine `json:"order"`
}

// OrderLine is one line of an order.
type OrderLine struct {
	Type     string `json:"type"` // "bundle"
	Quantity int    `json:"quantity"`
	Item     string `json:"item"`
}

// OrderResponse is returned for a placed order.
type OrderResponse struct {
	OrderReference string      `json:"orderReference"`
	Status         string      `json:"status"` // "completed", "failed"
	Message        string      `json:"message,omitempty"`
	Order          []OrderPart `json:"order"`
}

// OrderPart groups the eSIMs assigned for one order line.
type OrderPart struct {
	Item  string `json:"item"`
	Esims []Esim `json:"esims"`
}

// Esim carries the assigned profile credentials.
type Esim struct {
	ICCID       string `json:"iccid"`
	MatchingID  string `json:"matchingId"`
	SMDPAddress string `json:"smdpAddress"`
}

// Organisation is the account status payload, including the prepaid balance.
type Organisation struct {
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// EsimDetails is the status of one assigned profile.
type EsimDetails struct {
	ICCID        string `json:"iccid"`
	ProfileState string `json:"profileStatus"`
	FirstInstall string `json:"firstInstalledDateTime,omitempty"`
}
