package types

// Goal is the extraction goal tag passed to prompts
type Goal string

const (
	GoalProducts    Goal = "products"
	GoalArticle     Goal = "article"
	GoalContactInfo Goal = "contact_info"
	GoalTopics      Goal = "topics"
	GoalListItems   Goal = "list_items"
	GoalNews        Goal = "news"
)

// LinkHeavy reports goals whose prose extraction also collects anchors
func (g Goal) LinkHeavy() bool {
	switch g {
	case GoalTopics, GoalListItems, GoalNews:
		return true
	}
	return false
}

// ParseGoal falls back to products for unknown tags
func ParseGoal(s string) Goal {
	switch g := Goal(s); g {
	case GoalProducts, GoalArticle, GoalContactInfo, GoalTopics, GoalListItems, GoalNews:
		return g
	}
	return GoalProducts
}
