package models

import (
	"bytes"
	"encoding/json"
	"regexp"
)

// FlexString accepts either a JSON string or a bare number; the upstream
// parser emits consumption readings both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// jsonNumberRe matches the JSON number grammar.
var jsonNumberRe = regexp.MustCompile(`^-?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?$`)

// MarshalJSON keeps numeric values numeric on output, so a record that arrived
// with a bare-number reading round-trips with the same type.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if s := string(f); jsonNumberRe.MatchString(s) {
		return []byte(s), nil
	}
	return json.Marshal(string(f))
}

func (f FlexString) String() string { return string(f) }

// LineItem is the mutable working record for one parsed bill line. Field keys
// mirror the upstream parser's JSON exactly; anything the engine does not
// touch is preserved in Extra and round-trips unchanged.
type LineItem struct {
	VendorName          string     `json:"Vendor Name,omitempty"`
	BillFrom            string     `json:"Bill From,omitempty"`
	BillToNameFirstLine string     `json:"Bill To Name First Line,omitempty"`
	ServiceAddress      string     `json:"Service Address,omitempty"`
	ServiceCity         string     `json:"Service City,omitempty"`
	ServiceState        string     `json:"Service State,omitempty"`
	ServiceZipcode      string     `json:"Service Zipcode,omitempty"`
	UtilityType         string     `json:"Utility Type,omitempty"`
	HouseOrVacant       string     `json:"House Or Vacant,omitempty"`
	LineItemDescription string     `json:"Line Item Description,omitempty"`
	ConsumptionAmount   FlexString `json:"Consumption Amount,omitempty"`
	UnitOfMeasure       string     `json:"Unit of Measure,omitempty"`
	BillPeriodStart     string     `json:"Bill Period Start,omitempty"`
	BillPeriodEnd       string     `json:"Bill Period End,omitempty"`
	InvoiceNumber       string     `json:"Invoice Number,omitempty"`
	AccountNumber       string     `json:"Account Number,omitempty"`
	LineItemAccountNo   string     `json:"Line Item Account Number,omitempty"`
	MeterNumber         string     `json:"Meter Number,omitempty"`
	MeterSize           string     `json:"Meter Size,omitempty"`

	// Enrichment outputs.
	EnrichedVendorName      string  `json:"EnrichedVendorName,omitempty"`
	EnrichedVendorID        string  `json:"EnrichedVendorID,omitempty"`
	EnrichedPropertyName    string  `json:"EnrichedPropertyName,omitempty"`
	EnrichedPropertyID      string  `json:"EnrichedPropertyID,omitempty"`
	EnrichedGLAccountID     string  `json:"EnrichedGLAccountID,omitempty"`
	EnrichedGLAccountName   string  `json:"EnrichedGLAccountName,omitempty"`
	EnrichedGLAccountNumber string  `json:"EnrichedGLAccountNumber,omitempty"`
	EnrichedConsumption     float64 `json:"ENRICHED CONSUMPTION"`
	EnrichedUOM             string  `json:"ENRICHED UOM,omitempty"`
	GLLineDesc              string  `json:"GL_LINE_DESC,omitempty"`
	GLDescNew               string  `json:"GL DESC_NEW,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownLineItemKeys are the JSON keys owned by the struct fields above.
var knownLineItemKeys = map[string]struct{}{
	"Vendor Name": {}, "Bill From": {}, "Bill To Name First Line": {},
	"Service Address": {}, "Service City": {}, "Service State": {}, "Service Zipcode": {},
	"Utility Type": {}, "House Or Vacant": {}, "Line Item Description": {},
	"Consumption Amount": {}, "Unit of Measure": {},
	"Bill Period Start": {}, "Bill Period End": {},
	"Invoice Number": {}, "Account Number": {}, "Line Item Account Number": {},
	"Meter Number": {}, "Meter Size": {},
	"EnrichedVendorName": {}, "EnrichedVendorID": {},
	"EnrichedPropertyName": {}, "EnrichedPropertyID": {},
	"EnrichedGLAccountID": {}, "EnrichedGLAccountName": {}, "EnrichedGLAccountNumber": {},
	"ENRICHED CONSUMPTION": {}, "ENRICHED UOM": {},
	"GL_LINE_DESC": {}, "GL DESC_NEW": {},
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	type alias LineItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if _, known := knownLineItemKeys[k]; known {
			delete(raw, k)
		}
	}
	*li = LineItem(a)
	if len(raw) > 0 {
		li.Extra = raw
	}
	return nil
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	type alias LineItem
	data, err := json.Marshal(alias(li))
	if err != nil {
		return nil, err
	}
	if len(li.Extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range li.Extra {
		if _, owned := merged[k]; !owned {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
