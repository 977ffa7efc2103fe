package normalize

import (
	"regexp"
	"strings"

	"github.com/sdtechevents/eventhub/internal/models"
)

// CategoryRule pairs a taxonomy bucket with the keywords that select it.
type CategoryRule struct {
	Category models.Category
	Pattern  *regexp.Regexp
}

// CategoryRules is evaluated top to bottom and the first match wins, so a
// listing mentioning both AI and networking lands in AI / ML.
var CategoryRules = []CategoryRule{
	{models.CategoryAIML, regexp.MustCompile(`\b(ai\b|ml\b|machine learning|artificial intelligence|llm|gpt|deep learning)`)},
	{models.CategoryStartup, regexp.MustCompile(`\b(startup|founder|venture|vc\b|fundrais|pitch|demo day)`)},
	{models.CategoryWeb3, regexp.MustCompile(`\b(web3|crypto|blockchain|nft\b|defi|token)`)},
	{models.CategoryDesign, regexp.MustCompile(`\b(design|ux\b|ui\b|user experience|figma|product design)`)},
	{models.CategoryNetworking, regexp.MustCompile(`\b(network|mixer|happy hour|connect|social|community)`)},
	{models.CategoryWorkshops, regexp.MustCompile(`\b(workshop|bootcamp|training|course|learn|hands.on|tutorial)`)},
}

// Categorize assigns a taxonomy bucket from free text.
func Categorize(title, description string) models.Category {
	text := strings.ToLower(title + " " + description)
	for _, rule := range CategoryRules {
		if rule.Pattern.MatchString(text) {
			return rule.Category
		}
	}
	return models.CategoryDeveloperTools
}
