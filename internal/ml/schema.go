package ml

// Instruction is the text sent alongside every image.
const Instruction = "Identify the food in this image. Provide nutritional estimates. " +
	"Be realistic about portion sizes. Return ONLY valid JSON."

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBoolean
)

type field struct {
	name        string
	kind        fieldKind
	description string
}

// estimateFields is the response schema. Every field is required.
var estimateFields = []field{
	{"name", kindString, ""},
	{"calories", kindNumber, ""},
	{"protein", kindNumber, "grams of protein"},
	{"carbs", kindNumber, "grams of carbs"},
	{"fats", kindNumber, "grams of fat"},
	{"weight", kindNumber, "estimated weight in grams"},
	{"confidence", kindNumber, "percentage confidence (0-100)"},
	{"isFood", kindBoolean, "whether the image actually contains food"},
}

func requiredFields() []string {
	names := make([]string, len(estimateFields))
	for i, f := range estimateFields {
		names[i] = f.name
	}
	return names
}
