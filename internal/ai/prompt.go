package ai

import (
	"fmt"
	"strings"

	"github.com/procurehub/marketplace-api/internal/model"
)

const systemPrompt = `You are an experienced UK office-equipment procurement consultant. ` +
	`You know the current photocopier and multifunction printer market across all major ` +
	`manufacturers and you recommend machines that fit a buyer's stated volume, speed, ` +
	`budget and feature requirements. Be specific and concise.`

// SuggestRequest carries the buyer requirements embedded into the prompt.
type SuggestRequest struct {
	IndustryType      string                 `json:"industryType,omitempty"`
	MonthlyVolume     *model.MonthlyVolume   `json:"monthlyVolume,omitempty"`
	Type              model.PaperSize        `json:"type,omitempty"`
	MinSpeed          int                    `json:"min_speed,omitempty"`
	MaxLeasePrice     float64                `json:"max_lease_price,omitempty"`
	RequiredFunctions []string               `json:"required_functions,omitempty"`
	Colour            model.ColourPreference `json:"colour,omitempty"`
	Location          string                 `json:"location,omitempty"`
}

// userPrompt renders the request fields plus the exact output contract the
// parser expects: three lines of "[Manufacturer Model] - [explanation]".
func userPrompt(req SuggestRequest) string {
	var b strings.Builder
	b.WriteString("Recommend photocopier models for a business with these requirements:\n")
	if req.IndustryType != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", req.IndustryType)
	}
	if req.MonthlyVolume != nil {
		fmt.Fprintf(&b, "- Monthly volume: %d pages", req.MonthlyVolume.Effective())
		if req.MonthlyVolume.Colour > 0 {
			fmt.Fprintf(&b, " (%d mono, %d colour)", req.MonthlyVolume.Mono, req.MonthlyVolume.Colour)
		}
		b.WriteString("\n")
	}
	if req.Type != "" {
		fmt.Fprintf(&b, "- Paper size: %s\n", req.Type)
	}
	if req.MinSpeed > 0 {
		fmt.Fprintf(&b, "- Minimum speed: %d ppm\n", req.MinSpeed)
	}
	if req.MaxLeasePrice > 0 {
		fmt.Fprintf(&b, "- Budget: up to £%.0f per month\n", req.MaxLeasePrice)
	}
	if len(req.RequiredFunctions) > 0 {
		fmt.Fprintf(&b, "- Required functions: %s\n", strings.Join(req.RequiredFunctions, ", "))
	}
	if req.Colour != model.ColourAny {
		fmt.Fprintf(&b, "- Colour: %s\n", req.Colour)
	}
	if req.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", req.Location)
	}
	b.WriteString("\nRespond with exactly three lines, one recommendation per line, in the format:\n")
	b.WriteString("[Manufacturer Model] - [Brief explanation]\n")
	b.WriteString("Keep each explanation to one or two sentences. No preamble.")
	return b.String()
}
