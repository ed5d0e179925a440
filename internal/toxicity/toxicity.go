// Package toxicity scores generated text along a fixed set of harm dimensions.
package toxicity

import "context"

// Scores holds one probability per harm dimension.
type Scores struct {
	Toxicity       float64 `json:"toxicity"`
	SevereToxicity float64 `json:"severe_toxicity"`
	Obscene        float64 `json:"obscene"`
	IdentityAttack float64 `json:"identity_attack"`
	Insult         float64 `json:"insult"`
	Threat         float64 `json:"threat"`
	SexualExplicit float64 `json:"sexual_explicit"`
}

// Scorer rates a text along all dimensions.
type Scorer interface {
	Score(ctx context.Context, text string) (Scores, error)
}
