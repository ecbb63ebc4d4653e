package service

import (
	"fmt"
	"strings"

	"github.com/digkill/productgenius/internal/models"
)

const (
	taskPreamble = "TASK: High-end Professional Product Visualization."

	fidelityInstruction = "INSTRUCTION: Take the uploaded product image and place it in a professional commercial environment.\n" +
		"Preserve exact product identity: maintain the EXACT shape, color, and brand details of the product.\n" +
		"Transform the lighting, shadows, and background into a world-class studio shot.\n" +
		"The final output should look like a high-budget professional advertisement."
)

var nicheInstructions = map[models.BusinessType]string{
	models.BusinessElectronics: "Focus on sleek surfaces, tech-ready lighting, and high-precision detail. Emphasize metallic or glass textures. Think flagship smartphone or luxury laptop photography.",
	models.BusinessFootwear:    "Focus on dynamic angles, texture of the material (leather, fabric), and clean floor reflections. Athletic or luxury shoe boutique style.",
	models.BusinessFashion:     "Focus on fabric drape, soft lighting, and an elegant professional fashion studio environment. High-end apparel look.",
	models.BusinessLingerie:    "Focus on soft, intimate lighting, delicate shadows, and high-end boutique or silk-draped backgrounds. Sophisticated and tasteful.",
	models.BusinessHandbags:    "Focus on luxury placement, premium leather sheen, and sophisticated accessory staging. High-end leather goods look.",
	models.BusinessJewelry:     "Focus on extreme sparkle, macro-detail, sharp focus, and dramatic 'black-box' or marble lighting. Diamond and gold brilliance.",
	models.BusinessAccessories: "Focus on fine details of hair accessories, clips, or small jewelry. Delicate lighting, sharp focus on small textures like pearls or velvet.",
	models.BusinessHomeDecor:   "Focus on cozy interior aesthetics, natural light, and realistic room placement. Interior design magazine style.",
	models.BusinessCosmetics:   "Focus on clean, hygienic, splash effects or petal-soft textures and bright airy studio lighting. Premium skincare or makeup aesthetics.",
}

var styleInstructions = map[models.SceneStyle]string{
	models.StyleStudio:     "Pure white or soft grey professional cyclorama background, standard 3-point studio lighting, high commercial quality.",
	models.StyleLifestyle:  "Placed in a realistic everyday high-end environment, warm natural lighting, shallow depth of field.",
	models.StyleNature:     "Placed outdoors, organic elements like wood, stone, or water, golden hour sunlight.",
	models.StyleLuxury:     "Dark marble, gold accents, velvet textures, dramatic moody spotlighting, ultra-premium feel.",
	models.StyleMinimalist: "Clean geometric shapes, monochromatic palette, soft shadows, plenty of negative space.",
	models.StyleUrban:      "Industrial concrete, city bokeh background, cool tones, modern edgy vibe.",
}

// BuildInstruction composes the generator instruction. Niche and style
// framing always precede the user's free text.
func BuildInstruction(business models.BusinessType, style models.SceneStyle, userText string) string {
	niche, ok := nicheInstructions[business]
	if !ok {
		niche = "Professional commercial product photography."
	}
	env, ok := styleInstructions[style]
	if !ok {
		env = "Professional studio setup."
	}

	var b strings.Builder
	b.WriteString(taskPreamble)
	b.WriteString("\n")
	fmt.Fprintf(&b, "BUSINESS CONTEXT: %s.\n", business)
	fmt.Fprintf(&b, "NICHE REQUIREMENTS: %s\n", niche)
	fmt.Fprintf(&b, "ENVIRONMENT STYLE: %s\n", env)
	fmt.Fprintf(&b, "USER REQUEST: %s\n\n", userText)
	b.WriteString(fidelityInstruction)
	return b.String()
}

// promptLabel is the text stored on a result: the user's prompt or a summary of the selection.
func promptLabel(business models.BusinessType, style models.SceneStyle, userText string) string {
	if strings.TrimSpace(userText) != "" {
		return userText
	}
	return fmt.Sprintf("%s in %s style", business, style)
}

func validBusiness(b models.BusinessType) bool {
	_, ok := nicheInstructions[b]
	return ok
}

func validStyle(s models.SceneStyle) bool {
	_, ok := styleInstructions[s]
	return ok
}

func validQuality(q models.Quality) bool {
	for _, known := range models.Qualities {
		if q == known {
			return true
		}
	}
	return false
}
