package model

// Category is the macrofunction an activity belongs to.
type Category string

const (
	CategoryReporting   Category = "rendicontazione"
	CategoryProject     Category = "progetto"
	CategoryCall        Category = "bando"
	CategoryAudit       Category = "audit"
	CategoryRecruitment Category = "reclutamento"
	CategoryPurchase    Category = "acquisto"
	CategoryBoards      Category = "organi"
	CategoryAgreements  Category = "convenzioni"
	CategoryThirdParty  Category = "contoterzi"
	CategoryCentres     Category = "centri"
	CategoryBudget      Category = "bilancio"
	CategoryOffice      Category = "ufficio"
	CategoryRegulations Category = "regolamenti"
	CategoryPrivacy     Category = "privacy"
	CategoryPayments    Category = "pagamenti"
)

// Categories lists every macrofunction in display order.
var Categories = []Category{
	CategoryReporting,
	CategoryProject,
	CategoryCall,
	CategoryAudit,
	CategoryRecruitment,
	CategoryPurchase,
	CategoryBoards,
	CategoryAgreements,
	CategoryThirdParty,
	CategoryCentres,
	CategoryBudget,
	CategoryOffice,
	CategoryRegulations,
	CategoryPrivacy,
	CategoryPayments,
}

var categoryLabels = map[Category]string{
	CategoryReporting:   "Rendicontazione",
	CategoryProject:     "Progetto",
	CategoryCall:        "Bando",
	CategoryAudit:       "Audit",
	CategoryRecruitment: "Reclutamento",
	CategoryPurchase:    "Acquisto",
	CategoryBoards:      "Organi",
	CategoryAgreements:  "Convenzioni",
	CategoryThirdParty:  "Conto Terzi",
	CategoryCentres:     "Centri di Ricerca",
	CategoryBudget:      "Bilancio",
	CategoryOffice:      "Ufficio",
	CategoryRegulations: "Regolamenti",
	CategoryPrivacy:     "Privacy",
	CategoryPayments:    "Pagamenti",
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name, or the raw id for unknown values.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}
