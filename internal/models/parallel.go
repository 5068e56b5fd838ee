package models

import (
	"fmt"
	"time"
)

// TimeSlot is one of the fixed teaching blocks of a day.
type TimeSlot string

const (
	Slot1 TimeSlot = "SLOT1"
	Slot2 TimeSlot = "SLOT2"
	Slot3 TimeSlot = "SLOT3"
	Slot4 TimeSlot = "SLOT4"
	Slot5 TimeSlot = "SLOT5"
	Slot6 TimeSlot = "SLOT6"
	Slot7 TimeSlot = "SLOT7"
)

type slotBounds struct{ startH, startM, endH, endM int }

var slotTimes = map[TimeSlot]slotBounds{
	Slot1: {7, 30, 9, 0},
	Slot2: {9, 15, 10, 45},
	Slot3: {11, 0, 12, 30},
	Slot4: {12, 45, 14, 15},
	Slot5: {14, 30, 16, 0},
	Slot6: {16, 15, 17, 45},
	Slot7: {18, 0, 19, 30},
}

// Valid reports whether s is a known slot.
func (s TimeSlot) Valid() bool {
	_, ok := slotTimes[s]
	return ok
}

// Bounds returns the slot's start and end as offsets from midnight.
func (s TimeSlot) Bounds() (time.Duration, time.Duration) {
	b := slotTimes[s]
	start := time.Duration(b.startH)*time.Hour + time.Duration(b.startM)*time.Minute
	end := time.Duration(b.endH)*time.Hour + time.Duration(b.endM)*time.Minute
	return start, end
}

// String renders the slot as "HH:MM - HH:MM".
func (s TimeSlot) String() string {
	b, ok := slotTimes[s]
	if !ok {
		return string(s)
	}
	return fmt.Sprintf("%02d:%02d - %02d:%02d", b.startH, b.startM, b.endH, b.endM)
}

// DayOfWeek is the weekday a parallel meets on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// Valid reports whether d is a known weekday.
func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// Parallel is a scheduled section of a course. Membership lives in parallel_students and
// is only changed through enroll and drop.
type Parallel struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	SemesterID    string    `db:"semester_id" json:"semester_id"`
	ClassroomID   string    `db:"classroom_id" json:"classroom_id"`
	Capacity      int       `db:"capacity" json:"capacity"`
	TimeSlot      TimeSlot  `db:"time_slot" json:"time_slot"`
	DayOfWeek     DayOfWeek `db:"day_of_week" json:"day_of_week"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ParallelDetail enriches Parallel with course, teacher, classroom and semester info.
type ParallelDetail struct {
	Parallel
	CourseCode        string    `db:"course_code" json:"course_code"`
	CourseName        string    `db:"course_name" json:"course_name"`
	TeacherID         string    `db:"teacher_id" json:"teacher_id"`
	TeacherFirstName  string    `db:"teacher_first_name" json:"-"`
	TeacherLastName   string    `db:"teacher_last_name" json:"-"`
	ClassroomCode     string    `db:"classroom_code" json:"classroom_code"`
	SemesterCode      string    `db:"semester_code" json:"semester_code"`
	SemesterStartDate time.Time `db:"semester_start_date" json:"semester_start_date"`
}

// TeacherFullName joins the owning teacher's names.
func (p ParallelDetail) TeacherFullName() string {
	return fullName(p.TeacherFirstName, p.TeacherLastName)
}

// ParallelFilter narrows parallel listings.
type ParallelFilter struct {
	SemesterID      string
	CourseID        string
	StudentUsername string
}
