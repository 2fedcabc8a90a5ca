package models

import "time"

// NewsItem is a headline with VADER compound scores for its title and summary, each in [-1, 1]
type NewsItem struct {
	Published        time.Time `json:"published"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	Link             string    `json:"link"`
	TitleSentiment   float64   `json:"titleSentiment"`
	SummarySentiment float64   `json:"summarySentiment"`
}
