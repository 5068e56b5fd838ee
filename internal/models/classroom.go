package models

// Classroom is a room parallels are scheduled into.
type Classroom struct {
	ID       string `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Capacity int    `db:"capacity" json:"capacity"`
}
