package backend

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njoerd114/agendasync/internal/remote"
)

// drugLabels is the fixed label catalogue served at [remote.DrugLabelPath].
// Fields are left out on purpose where real labels often lack them.
var drugLabels = []remote.DrugLabel{
	{
		OpenFDA: &remote.DrugLabelMeta{
			BrandName:        []string{"Aspirin"},
			GenericName:      []string{"ASPIRIN"},
			ManufacturerName: []string{"Bayer HealthCare LLC."},
			ProductType:      []string{"HUMAN OTC DRUG"},
			Route:            []string{"ORAL"},
		},
		Purpose:             []string{"Pain reliever/fever reducer"},
		IndicationsAndUsage: []string{"Uses temporarily relieves minor aches and pains"},
		Warnings:            []string{"Reye's syndrome: children and teenagers who have or are recovering from chicken pox or flu-like symptoms should not use this product."},
		ActiveIngredient:    []string{"Aspirin 325 mg"},
	},
	{
		OpenFDA: &remote.DrugLabelMeta{
			BrandName:        []string{"Advil"},
			GenericName:      []string{"IBUPROFEN"},
			ManufacturerName: []string{"Haleon US Holdings LLC"},
			Route:            []string{"ORAL"},
		},
		Purpose:          []string{"Pain reliever/fever reducer"},
		ActiveIngredient: []string{"Ibuprofen 200 mg"},
	},
	{
		OpenFDA: &remote.DrugLabelMeta{
			BrandName:   []string{"Tylenol"},
			GenericName: []string{"ACETAMINOPHEN"},
		},
		IndicationsAndUsage: []string{strings.Repeat("Temporarily relieves minor aches and pains. ", 10)},
	},
}

// searchTerm matches the value of one field:value clause, quoted or bare.
var searchTerm = regexp.MustCompile(`:("(?:[^"\\]|\\.)*"|[^\s"]+)`)

// searchTerms extracts the searched names from an openFDA search expression
// such as `openfda.brand_name:"aspirin" OR openfda.generic_name:"aspirin"`.
func searchTerms(expr string) []string {
	var terms []string
	for _, m := range searchTerm.FindAllStringSubmatch(expr, -1) {
		term := m[1]
		if unq, err := strconv.Unquote(term); err == nil {
			term = unq
		}
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func labelMatches(l remote.DrugLabel, terms []string) bool {
	if l.OpenFDA == nil {
		return false
	}
	names := append(append([]string{}, l.OpenFDA.BrandName...), l.OpenFDA.GenericName...)
	for _, n := range names {
		for _, t := range terms {
			if strings.Contains(strings.ToLower(n), t) {
				return true
			}
		}
	}
	return false
}

func (s *Server) searchDrugLabels(c echo.Context) error {
	terms := searchTerms(c.QueryParam("search"))
	if len(terms) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "search is required")
	}
	limit := 1
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		limit = n
	}

	var out []remote.DrugLabel
	for _, l := range drugLabels {
		if len(out) == limit {
			break
		}
		if labelMatches(l, terms) {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No matches found!")
	}
	return c.JSON(http.StatusOK, remote.DrugLabelResponse{Results: out})
}
