package models

import "time"

// CourseLanguage is the teaching language of a course.
type CourseLanguage string

const (
	LanguageEnglish CourseLanguage = "EN"
	LanguageCzech   CourseLanguage = "CZ"
)

// Course is owned by a single teacher. Its parallels are looked up by course_id.
type Course struct {
	ID        string         `db:"id" json:"id"`
	TeacherID string         `db:"teacher_id" json:"teacher_id"`
	Name      string         `db:"name" json:"name"`
	Code      string         `db:"code" json:"code"`
	Credits   int            `db:"credits" json:"credits"`
	Language  CourseLanguage `db:"language" json:"language"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
