package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// DrugLabelPath is the drug label search endpoint of the openFDA API.
const DrugLabelPath = "/drug/label.json"

// DrugLabelResponse is the openFDA search answer.
type DrugLabelResponse struct {
	Results []DrugLabel `json:"results"`
}

// DrugLabel is one product label. Every field is a list in openFDA; most
// labels only fill the first entry, and any of them may be missing.
type DrugLabel struct {
	OpenFDA             *DrugLabelMeta `json:"openfda,omitempty"`
	Purpose             []string       `json:"purpose,omitempty"`
	IndicationsAndUsage []string       `json:"indications_and_usage,omitempty"`
	Warnings            []string       `json:"warnings,omitempty"`
	ActiveIngredient    []string       `json:"active_ingredient,omitempty"`
}

// DrugLabelMeta is the harmonized "openfda" block of a label.
type DrugLabelMeta struct {
	BrandName        []string `json:"brand_name,omitempty"`
	GenericName      []string `json:"generic_name,omitempty"`
	ManufacturerName []string `json:"manufacturer_name,omitempty"`
	ProductType      []string `json:"product_type,omitempty"`
	Route            []string `json:"route,omitempty"`
}

// Drugs searches drug labels. It is read-only and holds no session, so the
// client passed to [NewDrugs] should carry no booking API token.
type Drugs struct {
	c *Client
}

// NewDrugs returns the drug label search on c.
func NewDrugs(c *Client) *Drugs {
	return &Drugs{c: c}
}

// Search returns up to limit labels whose brand or generic name matches name.
// openFDA answers 404 when nothing matches; that is an empty result here.
func (d *Drugs) Search(ctx context.Context, name string, limit int) ([]DrugLabel, error) {
	q := url.Values{
		"search": {SearchQuery(name)},
		"limit":  {strconv.Itoa(limit)},
	}
	var resp DrugLabelResponse
	err := d.c.Do(ctx, http.MethodGet, DrugLabelPath, q, nil, &resp)
	if StatusOf(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SearchQuery builds the openFDA search expression matching name against the
// brand and generic names.
func SearchQuery(name string) string {
	term := strconv.Quote(name)
	return "openfda.brand_name:" + term + " OR openfda.generic_name:" + term
}
