package processor

import "strings"

// QualificationThreshold is the lead score at which an active chat is
// promoted to qualified.
const QualificationThreshold = 60

var signalBonuses = []struct {
	keywords []string
	bonus    int
}{
	{[]string{"price", "cost"}, 15},
	{[]string{"buy", "purchase"}, 25},
	{[]string{"when", "delivery"}, 15},
	{[]string{"yes", "interested"}, 10},
	{[]string{"email", "phone"}, 20},
}

// LeadScore computes a 0-100 buying-intent score from the conversation so
// far: engagement (message volume, capped) plus which signal words appear
// anywhere in the transcript. Each signal group counts once no matter how
// often it occurs, so the score is a pure function of the message set.
func LeadScore(contents []string) int {
	score := len(contents) * 5
	if score > 30 {
		score = 30
	}

	text := strings.ToLower(strings.Join(contents, " "))
	for _, group := range signalBonuses {
		for _, keyword := range group.keywords {
			if strings.Contains(text, keyword) {
				score += group.bonus
				break
			}
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
