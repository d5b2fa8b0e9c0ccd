package esimaccess

// envelope wraps every eSIM Access API response.
type envelope[T any] struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorMsg  string `json:"errorMsg,omitempty"`
	Obj       T      `json:"obj"`
}

// PackageListRequest requests one page of the package catalogue.
type PackageListRequest struct {
	LocationCode string `json:"locationCode,omitempty"`
	PageNum      int    `json:"pageNum"`
	PageSize     int    `json:"pageSize"`
}

// PackageListResult is one page of the package catalogue.
type PackageListResult struct {
	PackageList []Package `json:"packageList"`
	Total       int       `json:"total"`
}

// Package is a single data package. eSIM Access reports everything as
// explicit structured fields: MB volume, integer day duration, ISO location.
type Package struct {
	PackageCode  string `json:"packageCode"`
	Name         string `json:"name"`
	LocationCode string `json:"locationCode"`
	VolumeMB     int    `json:"volumeMb"`
	DurationDays int    `json:"durationDays"`
	// PriceCents is the cost in hundredths of the currency unit.
	PriceCents int    `json:"price"`
	Currency   string `json:"currency"`
	Available  bool   `json:"available"`
}

// OrderRequest places a profile order for a package.
type OrderRequest struct {
	TransactionID string      `json:"transactionId"`
	PackageInfo   []OrderItem `json:"packageInfoList"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	PackageCode string `json:"packageCode"`
	Count       int    `json:"count"`
}

// OrderResult is the payload returned for a successful order.
type OrderResult struct {
	OrderNo  string `json:"orderNo"`
	EsimList []Esim `json:"esimList"`
}

// Esim carries the provisioned profile. The activation code is in LPA form:
// "LPA:1$<smdp-address>$<matching-id>".
type Esim struct {
	ICCID          string `json:"iccid"`
	ActivationCode string `json:"ac"`
	QRCodeURL      string `json:"qrCodeUrl,omitempty"`
}

// BalanceResult is the account balance payload.
type BalanceResult struct {
	BalanceCents int    `json:"balance"`
	Currency     string `json:"currency"`
}

// EsimQueryRequest looks up a provisioned profile by ICCID.
type EsimQueryRequest struct {
	ICCID string `json:"iccid"`
}

// EsimStatus is the provisioning/usage state of one profile.
type EsimStatus struct {
	ICCID       string `json:"iccid"`
	Status      string `json:"esimStatus"`
	TotalMB     int    `json:"totalVolumeMb"`
	UsedMB      int    `json:"usedVolumeMb"`
	ExpiredTime string `json:"expiredTime,omitempty"`
}

// TopUpRequest adds a package to an existing profile.
type TopUpRequest struct {
	TransactionID string `json:"transactionId"`
	ICCID         string `json:"iccid"`
	PackageCode   string `json:"packageCode"`
}
