package classifier

import "strings"

// NegativeLabel is what the model answers when no known dish is in frame.
const NegativeLabel = "negative"

// labelToDish maps model labels to canonical dish names, which are the
// FoodReference names in the catalog.
var labelToDish = map[string]string{
	"adobo_chicken":   "Chicken Adobo",
	"adobo_pork":      "Pork Adobo",
	"sinigang_pork":   "Pork Sinigang",
	"sinigang_shrimp": "Shrimp Sinigang",
	"tinola":          "Chicken Tinola",
	"kare_kare":       "Kare-Kare",
	"pancit_canton":   "Pancit Canton",
	"pancit_bihon":    "Pancit Bihon",
	"lechon_kawali":   "Lechon Kawali",
	"sisig":           "Pork Sisig",
	"bistek":          "Bistek Tagalog",
	"menudo":          "Pork Menudo",
	"afritada":        "Chicken Afritada",
	"caldereta":       "Beef Caldereta",
	"nilaga_beef":     "Beef Nilaga",
	"pinakbet":        "Pinakbet",
	"laing":           "Laing",
	"ginataang_gulay": "Ginataang Gulay",
	"tortang_talong":  "Tortang Talong",
	"lumpia_shanghai": "Lumpia Shanghai",
	"longganisa":      "Longganisa",
	"tapa":            "Beef Tapa",
	"tocino":          "Pork Tocino",
	"daing_bangus":    "Daing na Bangus",
	"fried_tilapia":   "Fried Tilapia",
	"garlic_rice":     "Garlic Rice",
	"steamed_rice":    "Steamed Rice",
	"champorado":      "Champorado",
	"arroz_caldo":     "Arroz Caldo",
	"halo_halo":       "Halo-Halo",
	"leche_flan":      "Leche Flan",
	"turon":           "Turon",
}

var dishToLabel = func() map[string]string {
	m := make(map[string]string, len(labelToDish))
	for label, dish := range labelToDish {
		m[dish] = label
	}
	return m
}()

// ToDishName resolves a model label. The reserved negative label and
// unmapped labels are unsupported.
func ToDishName(label string) (string, bool) {
	if label == NegativeLabel {
		return "", false
	}
	dish, ok := labelToDish[label]
	return dish, ok
}

// ToLabel is the reverse lookup of ToDishName.
func ToLabel(dishName string) (string, bool) {
	label, ok := dishToLabel[dishName]
	return label, ok
}

func IsSupported(label string) bool {
	_, ok := ToDishName(label)
	return ok
}

// Dishes lists every canonical dish name the table knows.
func Dishes() []string {
	out := make([]string, 0, len(dishToLabel))
	for dish := range dishToLabel {
		out = append(out, dish)
	}
	return out
}

// NormalizeLabel folds a free-form label ("Chicken Adobo", "sinigang-pork")
// into the table's label form. Unknown labels come back lowercased with
// underscores so they fail IsSupported.
func NormalizeLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if label, ok := dishToLabel[raw]; ok {
		return label
	}
	for dish, label := range dishToLabel {
		if strings.EqualFold(dish, raw) {
			return label
		}
	}
	s := strings.ToLower(raw)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
