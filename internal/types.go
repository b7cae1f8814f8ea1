package internal

import (
	"encoding/json"
	"fmt"
)

type Unit string

const (
	UnitKg     Unit = "kg"
	UnitG      Unit = "g"
	UnitL      Unit = "L"
	UnitML     Unit = "ml"
	UnitEach   Unit = "each"
	UnitPkt    Unit = "pkt"
	UnitSachet Unit = "sachet"
	UnitLb     Unit = "lb"
	UnitOz     Unit = "oz"
	UnitPkg    Unit = "pkg"
)

// RawLineItem is one product line lifted from invoice text before any
// interpretation. Price is the line total.
type RawLineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     Unit    `json:"unit"`
	Price    float64 `json:"price"`
	RawLine  string  `json:"rawLine"`
}

type InvoiceDocument struct {
	InvoiceNumber *string       `json:"invoiceNumber"`
	Date          *string       `json:"date"`
	Total         *float64      `json:"total"`
	Items         []RawLineItem `json:"items"`
	RawText       string        `json:"-"`
	Strategy      string        `json:"strategy,omitempty"`
}

type IngredientType string

const (
	TypeFermentable IngredientType = "fermentable"
	TypeHop         IngredientType = "hop"
	TypeYeast       IngredientType = "yeast"
	TypeMisc        IngredientType = "misc"
)

// IngredientTypes is the fixed processing order used by sync and reports.
var IngredientTypes = []IngredientType{TypeFermentable, TypeHop, TypeYeast, TypeMisc}

// CatalogPath is the inventory collection name used by the Brewfather API.
func (t IngredientType) CatalogPath() string {
	switch t {
	case TypeFermentable:
		return "fermentables"
	case TypeHop:
		return "hops"
	case TypeYeast:
		return "yeasts"
	default:
		return "miscs"
	}
}

// CatalogUnit is the unit Brewfather keeps inventory amounts in.
func (t IngredientType) CatalogUnit() Unit {
	switch t {
	case TypeFermentable:
		return UnitKg
	case TypeYeast:
		return UnitPkg
	default:
		return UnitG
	}
}

func ParseIngredientType(s string) (IngredientType, error) {
	switch IngredientType(s) {
	case TypeFermentable, TypeHop, TypeYeast, TypeMisc:
		return IngredientType(s), nil
	}
	return "", fmt.Errorf("unknown ingredient type: %q", s)
}

// IngredientAttrs holds the attributes that only exist for one ingredient
// type. The concrete value always agrees with CanonicalIngredient.Type.
type IngredientAttrs interface {
	IngredientType() IngredientType
}

type FermentableAttrs struct {
	Color float64 `json:"color"`
}

type HopAttrs struct {
	Form  string  `json:"form"`
	Alpha float64 `json:"alpha"`
}

type YeastAttrs struct {
	Form       string `json:"form"`
	Laboratory string `json:"laboratory"`
	ProductID  string `json:"productId"`
}

type MiscAttrs struct {
	Use string `json:"use"`
}

func (FermentableAttrs) IngredientType() IngredientType { return TypeFermentable }
func (HopAttrs) IngredientType() IngredientType         { return TypeHop }
func (YeastAttrs) IngredientType() IngredientType       { return TypeYeast }
func (MiscAttrs) IngredientType() IngredientType        { return TypeMisc }

type CanonicalIngredient struct {
	Type     IngredientType
	Name     string
	SubType  string
	Attrs    IngredientAttrs
	Amount   float64
	Unit     Unit
	Cost     float64
	Supplier string
	Origin   string
	Notes    string
	RawLine  string
}

// MarshalJSON flattens the type specific attributes into the record.
func (c CanonicalIngredient) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":     c.Type,
		"name":     c.Name,
		"subType":  c.SubType,
		"amount":   c.Amount,
		"unit":     c.Unit,
		"cost":     c.Cost,
		"supplier": c.Supplier,
		"origin":   c.Origin,
		"notes":    c.Notes,
		"rawLine":  c.RawLine,
	}
	if c.Attrs != nil {
		blob, err := json.Marshal(c.Attrs)
		if err != nil {
			return nil, err
		}
		var attrs map[string]any
		if err := json.Unmarshal(blob, &attrs); err != nil {
			return nil, err
		}
		for k, v := range attrs {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// DecodeAttrs rebuilds the attribute value of the given type from its JSON form.
func DecodeAttrs(t IngredientType, blob []byte) (IngredientAttrs, error) {
	switch t {
	case TypeFermentable:
		var a FermentableAttrs
		err := json.Unmarshal(blob, &a)
		return a, err
	case TypeHop:
		var a HopAttrs
		err := json.Unmarshal(blob, &a)
		return a, err
	case TypeYeast:
		var a YeastAttrs
		err := json.Unmarshal(blob, &a)
		return a, err
	case TypeMisc:
		var a MiscAttrs
		err := json.Unmarshal(blob, &a)
		return a, err
	}
	return nil, fmt.Errorf("unknown ingredient type: %q", t)
}

type CatalogEntry struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	CurrentAmount float64 `json:"currentAmount"`
	Unit          Unit    `json:"unit"`
}

type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
)

type MatchResult struct {
	Found       bool            `json:"found"`
	Entry       *CatalogEntry   `json:"entry,omitempty"`
	Confidence  MatchConfidence `json:"confidence,omitempty"`
	Suggestions []CatalogEntry  `json:"suggestions,omitempty"`
}

type SyncAction string

const (
	ActionAdjusted SyncAction = "adjusted"
	ActionNotFound SyncAction = "not_found"
	ActionError    SyncAction = "error"
)

type SyncItemResult struct {
	Name          string     `json:"name"`
	Success       bool       `json:"success"`
	Action        SyncAction `json:"action"`
	ID            string     `json:"id,omitempty"`
	CurrentAmount float64    `json:"currentAmount,omitempty"`
	AdjustedBy    float64    `json:"adjustedBy,omitempty"`
	NewAmount     float64    `json:"newAmount,omitempty"`
	Unit          Unit       `json:"unit,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type CategorySyncResult struct {
	Type  IngredientType   `json:"type"`
	Items []SyncItemResult `json:"items"`
	Err   error            `json:"-"`
}

type CategorySummary struct {
	Successful int `json:"successful"`
	NotFound   int `json:"notFound"`
	Errors     int `json:"errors"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type InvoiceRow struct {
	ID            int64
	EmailID       *int
	Source        string
	Supplier      string
	InvoiceNumber *string
	InvoiceDate   *string
	Total         *float64
	Strategy      string
	ItemCount     int
	CreatedAt     string
}

type StoredIngredient struct {
	ID         int64
	InvoiceID  int64
	LineNo     int
	Ingredient CanonicalIngredient
}

// IngredientExportRow joins a stored ingredient with its most recent sync outcome.
type IngredientExportRow struct {
	LineNo      int
	Type        string
	Name        string
	SubType     string
	Amount      float64
	Unit        string
	Cost        float64
	Origin      string
	Supplier    string
	RawLine     string
	SyncAction  *string
	SyncSuccess *bool
	SyncError   *string
	CatalogID   *string
	NewAmount   *float64
}
