package model

// Medication summarises one drug label. Missing fields hold [Unavailable].
type Medication struct {
	BrandName        string
	GenericName      string
	Manufacturer     string
	Purpose          string
	Indications      string
	Warnings         string
	ActiveIngredient string
	Route            string
}
