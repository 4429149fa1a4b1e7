// Package guardrails provides a static keyword classifier used to map
// free-form notification text to a marketplace topic category. It is a
// pure scoring function over two keyword sets with a fixed confidence
// formula; there is no state and no learning component.
package guardrails

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hs2504785/greenspace-push/pkg/notification"
)

// Result is the outcome of classifying one text
type Result struct {
	Category         string  `json:"category"`
	Confidence       float64 `json:"confidence"`
	TopicMatches     int     `json:"topic_matches"`
	MarketingMatches int     `json:"marketing_matches"`
}

// Classifier scores text against a product-topic keyword set and a
// marketing keyword set
type Classifier struct {
	topicKeywords     []string
	marketingKeywords []string
}

// keywordFile is the YAML shape for custom keyword sets
type keywordFile struct {
	Topic     []string `yaml:"topic"`
	Marketing []string `yaml:"marketing"`
}

// NewClassifier creates a classifier with the built-in keyword sets
func NewClassifier() *Classifier {
	return &Classifier{
		topicKeywords: []string{
			"tomato", "vegetable", "fruit", "seed", "seedling", "harvest",
			"organic", "natural", "farm", "fresh", "stock", "listed",
			"compost", "soil", "plant", "tree", "grow", "garden",
		},
		marketingKeywords: []string{
			"sale", "discount", "offer", "deal", "promo", "coupon",
			"limited time", "free shipping", "newsletter", "% off",
		},
	}
}

// NewClassifierFromFile loads keyword sets from a YAML file, falling back
// to the built-in sets for any section the file omits
func NewClassifierFromFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}

	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse keywords file: %w", err)
	}

	c := NewClassifier()
	if len(kf.Topic) > 0 {
		c.topicKeywords = kf.Topic
	}
	if len(kf.Marketing) > 0 {
		c.marketingKeywords = kf.Marketing
	}
	return c, nil
}

// Classify scores the text against both keyword sets. The confidence is
// matches/(matches+opposing+1), so a lone uncontested match scores 0.5
// and confidence grows with the match margin.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	topic := countMatches(lower, c.topicKeywords)
	marketing := countMatches(lower, c.marketingKeywords)

	result := Result{
		TopicMatches:     topic,
		MarketingMatches: marketing,
	}

	if marketing > topic {
		result.Category = notification.TypeMarketing
		result.Confidence = float64(marketing) / float64(marketing+topic+1)
	} else {
		result.Category = notification.TypeNewProduct
		result.Confidence = float64(topic) / float64(topic+marketing+1)
	}

	return result
}

// Categorize implements notification.TopicClassifier
func (c *Classifier) Categorize(text string) string {
	return c.Classify(text).Category
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			count++
		}
	}
	return count
}
