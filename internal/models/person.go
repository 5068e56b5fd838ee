package models

import "strings"

// Role tags the kind of person; behaviour that differs per role dispatches on it.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// Person is the shared identity of admins, teachers and students.
type Person struct {
	ID        string `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Role      Role   `db:"role" json:"role"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return fullName(p.FirstName, p.LastName)
}

func (p Person) IsStudent() bool { return p.Role == RoleStudent }
func (p Person) IsTeacher() bool { return p.Role == RoleTeacher }

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
