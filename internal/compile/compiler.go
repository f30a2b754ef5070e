package compile

// Compiler renders issues to email HTML.
type Compiler struct {
	templates        *TemplateService
	brand            string
	deliverableBrand string
}

// NewCompiler creates a compiler for the given brand names. The
// deliverable brand replaces the real brand in the deliverability
// variant.
func NewCompiler(brand, deliverableBrand string) *Compiler {
	if brand == "" {
		brand = "Pivot 5"
	}
	if deliverableBrand == "" {
		deliverableBrand = "Daily AI Briefing"
	}
	return &Compiler{
		templates:        NewTemplateService(),
		brand:            brand,
		deliverableBrand: deliverableBrand,
	}
}
