package model

// Course is an entry of the static course catalog.
type Course struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
